package push

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"inkshelf/pkg/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// display devices connect from arbitrary local origins
		return true
	},
}

// WSHandler upgrades the request and parks the client in the hub until
// it hangs up.
func WSHandler(hub *Hub) gin.HandlerFunc {
	log := logging.For("push-ws")

	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		hub.AddWS(ws)
		log.Info().Str("remote", c.ClientIP()).Msg("client connected")

		_ = ws.WriteMessage(
			websocket.TextMessage,
			[]byte(`{"type":"welcome","transport":"websocket"}`+"\n"),
		)

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		log.Info().Str("remote", c.ClientIP()).Msg("client disconnected")
	}
}
