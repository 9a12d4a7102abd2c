package push

import (
	"bufio"
	"errors"
	"net"
	"sync/atomic"

	"github.com/rs/zerolog"

	"inkshelf/pkg/logging"
)

// Server accepts raw TCP display clients and registers them with the
// hub. Clients only ever receive; anything they send is drained and
// discarded to keep the connection alive.
type Server struct {
	Addr string
	Hub  *Hub

	ln     net.Listener
	closed atomic.Bool
	log    zerolog.Logger
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub, log: logging.For("push-tcp")}
}

// Run blocks accepting connections until Close is called.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info().Str("addr", s.Addr).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}

		s.Hub.Add(conn)
		s.Hub.Welcome(conn)
		s.log.Info().Stringer("remote", conn.RemoteAddr()).Msg("client connected")

		go func(c net.Conn) {
			defer func() {
				s.Hub.Remove(c)
				s.log.Info().Stringer("remote", c.RemoteAddr()).Msg("client disconnected")
			}()

			sc := bufio.NewScanner(c)
			for sc.Scan() {
				// ignore incoming lines
			}
		}(conn)
	}
}

// Close stops accepting new connections. Existing clients stay until
// their next failed write drops them.
func (s *Server) Close() error {
	s.closed.Store(true)
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
