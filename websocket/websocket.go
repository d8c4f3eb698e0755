package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/aravindet/engine.io/transport"
)

// NewCreater returns the registry entry for the websocket transport.
func NewCreater(upgrader *websocket.Upgrader) transport.Creater {
	return transport.Creater{
		Name: "websocket",
		Server: func(w http.ResponseWriter, r *http.Request, callback transport.Callback) (transport.Server, error) {
			return NewServer(upgrader, w, r, callback)
		},
	}
}
