package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Anyuluo996/BotShepherd/logger"
)

// listenerShutdownTimeout bounds draining one extra-port server.
const listenerShutdownTimeout = 3 * time.Second

// portListener serves websocket upgrades for one routed port outside
// the main HTTP server. Each carries its own http.Server so reload can
// start and stop ports independently.
type portListener struct {
	port int
	srv  *http.Server
	log  *logger.Logger
}

func newPortListener(p *Proxy, host string, port int) (*portListener, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	l := &portListener{
		port: port,
		log:  p.log.WithFields(logger.Fields("port", port)),
	}
	l.srv = &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p.dispatch(w, r, port)
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.log.Error("Listener stopped unexpectedly", logger.ErrorFields("serve", err))
		}
	}()

	l.log.Info("WebSocket listener started", logger.Fields("addr", addr))
	return l, nil
}

// shutdown stops accepting upgrades. Already-hijacked websockets are
// not affected; their sessions are closed separately.
func (l *portListener) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, listenerShutdownTimeout)
	defer cancel()
	if err := l.srv.Shutdown(ctx); err != nil {
		l.log.Warn("Listener shutdown incomplete", logger.ErrorFields("shutdown", err))
	}
}
