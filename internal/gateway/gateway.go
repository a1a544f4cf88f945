// Package gateway connects websocket clients to the session registry:
// it authenticates new sockets, keeps the roster broadcast current and
// relays chat messages to everyone.
package gateway

import (
	"context"
	"fmt"
	"time"

	"teslo/internal/auth"
	apperrors "teslo/internal/errors"
	"teslo/internal/logger"
	"teslo/internal/models"
	"teslo/internal/presence"

	"go.uber.org/zap"
)

// Event names on the wire.
const (
	EventConnectedClients  = "connected-clients"
	EventMessageFromServer = "message-from-server"
	EventMessageFromClient = "message-from-client"
)

// TokenVerifier turns a raw token into a user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// UserDirectory loads a user that is allowed to connect.
type UserDirectory interface {
	FindActiveUser(ctx context.Context, userID string) (*models.User, error)
}

type Options struct {
	// AuthTimeout bounds token verification plus user lookup. Zero disables it.
	AuthTimeout time.Duration
	// Mirror receives online/offline updates. Defaults to presence.NopMirror.
	Mirror presence.Mirror
	// SendBuffer is the per-socket outbound queue length.
	SendBuffer int
}

// Gateway owns the connection lifecycle.
type Gateway struct {
	registry *presence.Registry
	tokens   TokenVerifier
	users    UserDirectory
	mirror   presence.Mirror
	relay    *Relay
	log      *zap.Logger

	authTimeout time.Duration
	sendBuffer  int
}

func New(registry *presence.Registry, tokens TokenVerifier, users UserDirectory, opts Options) *Gateway {
	if opts.Mirror == nil {
		opts.Mirror = presence.NopMirror{}
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	log := logger.Named("gateway")
	return &Gateway{
		registry:    registry,
		tokens:      tokens,
		users:       users,
		mirror:      opts.Mirror,
		relay:       NewRelay(registry, log),
		log:         log,
		authTimeout: opts.AuthTimeout,
		sendBuffer:  opts.SendBuffer,
	}
}

// Relay returns the message relay bound to this gateway's registry.
func (g *Gateway) Relay() *Relay { return g.relay }

// OnConnect authenticates conn with the token in rawAuth ("Bearer <jwt>" or
// the bare token). On failure the connection is closed, nothing is
// broadcast and the returned error wraps apperrors.ErrAuthentication.
func (g *Gateway) OnConnect(ctx context.Context, conn presence.Conn, rawAuth string) error {
	user, err := g.authenticate(ctx, auth.BearerToken(rawAuth))
	if err != nil {
		conn.Close()
		g.log.Warn("socket rejected",
			zap.String("conn_id", conn.ID()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", apperrors.ErrAuthentication, err)
	}

	if old, ok := g.registry.Register(conn, user.ID, user.FullName); ok {
		g.log.Info("session displaced",
			zap.String("user_id", user.ID),
			zap.String("old_conn_id", old.ConnectionID),
			zap.String("conn_id", conn.ID()),
		)
	}
	g.log.Info("client connected",
		zap.String("conn_id", conn.ID()),
		zap.String("user_id", user.ID),
		zap.Int("clients", g.registry.Len()),
	)
	g.online(user.ID, conn.ID())

	g.broadcastRoster()
	return nil
}

// OnDisconnect removes the connection and tells the remaining clients.
// Calling it for an unknown or already removed id is fine.
func (g *Gateway) OnDisconnect(connectionID string) {
	if sess, ok := g.registry.Remove(connectionID); ok {
		g.log.Info("client disconnected",
			zap.String("conn_id", connectionID),
			zap.String("user_id", sess.UserID),
			zap.Int("clients", g.registry.Len()),
		)
		g.offline(sess.UserID, connectionID)
	}
	g.broadcastRoster()
}

// CloseAll closes every live connection. Used on shutdown.
func (g *Gateway) CloseAll() {
	for _, c := range g.registry.Conns() {
		c.Close()
	}
}

func (g *Gateway) authenticate(ctx context.Context, token string) (*models.User, error) {
	if g.authTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.authTimeout)
		defer cancel()
	}

	type result struct {
		user *models.User
		err  error
	}
	done := make(chan result, 1)
	go func() {
		userID, err := g.tokens.VerifyToken(token)
		if err != nil {
			done <- result{err: err}
			return
		}
		user, err := g.users.FindActiveUser(ctx, userID)
		done <- result{user: user, err: err}
	}()

	select {
	case r := <-done:
		return r.user, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("authentication aborted: %w", ctx.Err())
	}
}

func (g *Gateway) broadcastRoster() {
	broadcast(g.registry, g.log, EventConnectedClients, g.registry.ConnectionIDs())
}

// touch renews the presence entry of a live connection.
func (g *Gateway) touch(connectionID string) {
	if sess, ok := g.registry.SessionOf(connectionID); ok {
		g.online(sess.UserID, connectionID)
	}
}

func (g *Gateway) online(userID, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.mirror.Online(ctx, userID, connID); err != nil {
		g.log.Warn("presence online failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (g *Gateway) offline(userID, connID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := g.mirror.Offline(ctx, userID, connID); err != nil {
		g.log.Warn("presence offline failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// broadcast emits to every live connection. A failed emit only affects
// that one socket.
func broadcast(registry *presence.Registry, log *zap.Logger, event string, data any) {
	for _, c := range registry.Conns() {
		if err := c.Emit(event, data); err != nil {
			log.Debug("emit failed",
				zap.String("conn_id", c.ID()),
				zap.String("event", event),
				zap.Error(err),
			)
		}
	}
}
