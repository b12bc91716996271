package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The rate at which updates are sent to the client, so as not to overburden it.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// A client publishes updates unidirectionally to a web client over a websocket.
type client[T any] struct {
	updates <-chan T
	ws      *websock
	ctx     context.Context
}

// NewClient upgrades the request to a websocket and returns a publisher for the
// updates chan. Updates should be idempotent snapshots: when they arrive faster
// than the publish rate only the latest is sent.
func NewClient[T any](
	ctx context.Context,
	updates <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	return &client[T]{
		updates: updates,
		ws:      NewWebSocket(ws),
		ctx:     ctx,
	}, nil
}

// Sync publishes updates to the client until the client disconnects, the updates
// chan closes, or ctx is done. It returns nil in those cases and an error only if
// the connection failed unexpectedly. The websocket is closed on return.
func (cli *client[T]) Sync() error {
	defer cli.ws.Close()
	group, groupCtx := errgroup.WithContext(cli.ctx)

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})
	group.Go(func() error {
		// Unblock the reader once any other routine has finished.
		<-groupCtx.Done()
		_ = cli.ws.Conn().SetReadDeadline(time.Now())
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, errDone) {
		return err
	}
	return nil
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// errDone stops the group when the client goes away normally.
var errDone = errors.New("client done")

// Runs the ping-pong for the client liveness check.
// NOTE: This function requires that readMessages is running to ensure the pong handler is called.
func (cli *client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}

			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				err = fmt.Errorf("ping failed: %w", err)
			}
			return
		})
}

// readMessages drains messages from the client, which is what dispatches pongs and
// close frames. Read errors are permanent, hence any error triggers full teardown.
func (cli *client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		switch {
		case ctx.Err() != nil:
			return nil
		case isClosure(err):
			return errDone
		case err != nil:
			return err
		}
	}
}

// publish sends updates at no more than pubResolution. An update arriving too soon
// is held and sent on the next tick unless a newer one replaces it first.
func (cli *client[T]) publish(ctx context.Context) error {
	var lastSync time.Time
	var pending *T
	flush := channerics.NewTicker(ctx.Done(), pubResolution)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-cli.updates:
			// Graceful input channel closure
			if !ok {
				return errDone
			}
			if time.Since(lastSync) < pubResolution {
				pending = &update
				break
			}
			if err := cli.send(ctx, update); err != nil {
				return err
			}
			lastSync, pending = time.Now(), nil
		case <-flush:
			if pending == nil || time.Since(lastSync) < pubResolution {
				break
			}
			if err := cli.send(ctx, *pending); err != nil {
				return err
			}
			lastSync, pending = time.Now(), nil
		}
	}
}

func (cli *client[T]) send(ctx context.Context, update T) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (writeErr error) {
			if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
				return fmt.Errorf("failed to set deadline: %w", writeErr)
			}
			if writeErr = ws.WriteJSON(update); writeErr != nil {
				writeErr = fmt.Errorf("publish failed: %w", writeErr)
			}
			return
		})
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	writeDeadline    = time.Second
	closeGracePeriod = 250 * time.Millisecond
)

// websock serializes writes to the websocket, which permits only one concurrent
// writer. There is only ever one reader.
type websock struct {
	// These are merely mutexes, but channel semantics are cleaner.
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Returns the underlying websocket.
// This should only be used for setup, e.g. adding handlers, and deadlines.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close sends a close frame and closes the websocket. This should only be called
// once no further readers or writers exist.
func (sock *websock) Close() {
	sock.readSem <- struct{}{}
	sock.writeSem <- struct{}{}

	_ = sock.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	time.Sleep(closeGracePeriod)
	sock.ws.Close()
}

// Read serializes read operations on the internal web socket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
