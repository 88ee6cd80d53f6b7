package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/workerdom/coordinator/internal/infrastructure/logging"
	"github.com/workerdom/coordinator/internal/protocol"
	"github.com/workerdom/coordinator/internal/shared/id"
	workerpkg "github.com/workerdom/coordinator/internal/worker"
)

// Worker adapts one WebSocket connection to the worker abstraction. The
// remote end is untrusted: inbound messages are rate limited and strictly
// decoded, and a message that fails to decode terminates the connection.
type Worker struct {
	connID  id.ConnectionID
	conn    *websocket.Conn
	log     *logging.Logger
	limiter *rate.Limiter

	writeMu sync.Mutex
	out     chan protocol.FromWorker
	quit    chan struct{}
	once    sync.Once
}

var _ workerpkg.Worker = (*Worker)(nil)

// NewWorker wraps an upgraded connection and starts its read pump. The
// limiter bounds inbound message rate; nil means unlimited.
func NewWorker(conn *websocket.Conn, limiter *rate.Limiter, log *logging.Logger) *Worker {
	if log == nil {
		log = logging.NewNop()
	}
	w := &Worker{
		connID:  id.NewConnectionID(),
		conn:    conn,
		log:     log,
		limiter: limiter,
		out:     make(chan protocol.FromWorker, 64),
		quit:    make(chan struct{}),
	}
	go w.readPump()
	return w
}

// ConnectionID returns the transport connection identifier.
func (w *Worker) ConnectionID() id.ConnectionID { return w.connID }

// Send writes one coordinator message to the remote worker.
func (w *Worker) Send(msg protocol.ToWorker) error {
	select {
	case <-w.quit:
		return workerpkg.ErrTerminated
	default:
	}

	data, err := protocol.EncodeToWorker(&msg)
	if err != nil {
		return err
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Messages returns the ordered inbound stream. Closed when the connection
// drops or the worker is terminated.
func (w *Worker) Messages() <-chan protocol.FromWorker {
	return w.out
}

// Terminate closes the connection. Idempotent.
func (w *Worker) Terminate() {
	w.once.Do(func() {
		close(w.quit)
		w.conn.Close()
	})
}

// Done is closed when the worker is gone, either side first.
func (w *Worker) Done() <-chan struct{} {
	return w.quit
}

// readPump decodes inbound frames until the connection drops. Runs in its
// own goroutine; closing out is the termination signal downstream.
func (w *Worker) readPump() {
	defer func() {
		close(w.out)
		w.Terminate()
	}()

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.quit:
			default:
				w.log.Debug("worker connection closed",
					zap.String("connection_id", w.connID.String()),
					zap.Error(err))
			}
			return
		}

		if w.limiter != nil && !w.limiter.Allow() {
			w.log.Warn("worker message rate exceeded, dropping",
				zap.String("connection_id", w.connID.String()))
			continue
		}

		msg, err := protocol.DecodeFromWorker(data)
		if err != nil {
			// Strict decode is fail-closed: a malformed frame from an
			// untrusted worker ends the connection.
			w.log.Warn("malformed worker message, terminating",
				zap.String("connection_id", w.connID.String()),
				zap.Error(err))
			return
		}

		select {
		case w.out <- *msg:
		case <-w.quit:
			return
		}
	}
}
