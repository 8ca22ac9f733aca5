// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/godwokenrises/godwoken-sub004/api/utils"
	"github.com/godwokenrises/godwoken-sub004/chain"
	"github.com/godwokenrises/godwoken-sub004/gw"
	"github.com/godwokenrises/godwoken-sub004/log"
	"github.com/godwokenrises/godwoken-sub004/txpool"
)

var logger = log.WithContext("pkg", "subscriptions")

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 7) / 10
)

type Subscriptions struct {
	backtraceLimit uint32
	repo           *chain.Repository
	pool           *txpool.TxPool
	upgrader       *websocket.Upgrader
	pendingTx      *pendingTx
	messages       *messageCache
	done           chan struct{}
	wg             sync.WaitGroup
}

// msgReader reads the next messages of a subject. Read blocks until messages are ready, and
// returns nil messages once stop is closed.
type msgReader interface {
	Read(stop <-chan struct{}) ([]json.RawMessage, error)
}

func New(repo *chain.Repository, allowedOrigins []string, backtraceLimit uint32, pool *txpool.TxPool) *Subscriptions {
	sub := &Subscriptions{
		backtraceLimit: backtraceLimit,
		repo:           repo,
		pool:           pool,
		upgrader: &websocket.Upgrader{
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == origin || allowed == "*" {
						return true
					}
				}
				return false
			},
		},
		pendingTx: newPendingTx(pool),
		messages:  newMessageCache(backtraceLimit),
		done:      make(chan struct{}),
	}

	sub.wg.Add(1)
	go func() {
		defer sub.wg.Done()
		sub.pendingTx.DispatchLoop(sub.done)
	}()
	return sub
}

// parsePosition parses the block number or hash the subscription starts from, the tip by default.
func (s *Subscriptions) parsePosition(pos string) (uint64, error) {
	tip := s.repo.Tip().Block.Header().Number()
	if pos == "" {
		return tip, nil
	}
	var num uint64
	if len(pos) == 66 || len(pos) == 64 {
		hash, err := gw.ParseBytes32(pos)
		if err != nil {
			return 0, utils.BadRequest(errors.WithMessage(err, "pos"))
		}
		if num, err = s.repo.GetBlockNumber(hash); err != nil {
			if s.repo.IsNotFound(err) {
				return 0, utils.BadRequest(errors.New("pos: block not found"))
			}
			return 0, err
		}
	} else {
		n, err := utils.StringToUint64(pos)
		if err != nil {
			return 0, utils.BadRequest(errors.WithMessage(err, "pos"))
		}
		num = n
	}
	if num > tip {
		return 0, utils.BadRequest(errors.New("pos: ahead of the tip"))
	}
	if tip-num > uint64(s.backtraceLimit) {
		return 0, utils.Forbidden(errors.New("pos: backtrace limit exceeded"))
	}
	return num, nil
}

func (s *Subscriptions) handleSubject(w http.ResponseWriter, req *http.Request) error {
	s.wg.Add(1)
	defer s.wg.Done()

	var reader msgReader
	switch mux.Vars(req)["subject"] {
	case "block":
		pos, err := s.parsePosition(req.URL.Query().Get("pos"))
		if err != nil {
			return err
		}
		reader = newBlockReader(s.repo, pos, s.messages, int(s.backtraceLimit))
	case "txpool":
		r := newChanReader[*PendingMessage]()
		s.pendingTx.Subscribe(r.ch)
		defer s.pendingTx.Unsubscribe(r.ch)
		reader = r
	case "mem-block":
		r := newChanReader[*txpool.MemBlockEvent]()
		sub := s.pool.SubscribeMemBlockEvent(r.ch)
		defer sub.Unsubscribe()
		reader = r
	default:
		return utils.NotFound(errors.New("unknown subject"))
	}

	conn, err := s.upgrader.Upgrade(w, req, nil)
	// since the conn is hijacked here, no error should be returned in lines below
	if err != nil {
		logger.Debug("upgrade to websocket", "err", err)
		return nil
	}
	defer conn.Close()

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := s.pipe(conn, reader); err != nil {
		closeMsg = websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
		logger.Debug("subscription closed", "err", err)
	}
	conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
	return nil
}

func (s *Subscriptions) pipe(conn *websocket.Conn, reader msgReader) error {
	closed := make(chan struct{})
	// read loop, handles pongs and detects a closed peer
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	stop := make(chan struct{})
	go func() {
		defer close(stop)
		pingTicker := time.NewTicker(pingPeriod)
		defer pingTicker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-closed:
				return
			case <-pingTicker.C:
				// WriteControl is safe to call concurrently with writes
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		msgs, err := reader.Read(stop)
		if err != nil {
			return err
		}
		if msgs == nil {
			return nil
		}
		for _, msg := range msgs {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}
		}
	}
}

// Close closes the subscriptions and waits for hijacked conns to finish.
func (s *Subscriptions) Close() {
	close(s.done)
	s.wg.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{subject}").Methods(http.MethodGet).HandlerFunc(utils.WrapHandlerFunc(s.handleSubject))
}

// chanReader pipes messages received on a channel.
type chanReader[T any] struct {
	ch chan T
}

func newChanReader[T any]() *chanReader[T] {
	return &chanReader[T]{make(chan T, 64)}
}

func (r *chanReader[T]) Read(stop <-chan struct{}) ([]json.RawMessage, error) {
	var v T
	select {
	case v = <-r.ch:
	case <-stop:
		return nil, nil
	}
	var msgs []json.RawMessage
	for {
		msg, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
		select {
		case v = <-r.ch:
		default:
			return msgs, nil
		}
	}
}
