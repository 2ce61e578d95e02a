package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront-auth/internal/client/models"
	"github.com/dmitrijs2005/storefront-auth/internal/common"
	"github.com/dmitrijs2005/storefront-auth/internal/logging"
	grpclogging "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/timeout"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	log         logging.Logger
	store       SessionStore
	timeout     time.Duration
	dialOpts    []grpc.DialOption

	// refresher exchanges a refresh token for a new session.
	refresher func(ctx context.Context, refreshToken string) (*models.Session, error)

	mu      sync.Mutex
	session *models.Session
	loaded  bool

	refreshMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[uint64]func(models.Event)
	nextSub uint64

	// watchBackoff spaces WatchSession reconnects.
	watchBackoff retry.BackoffFunc
}

type Option func(*GRPCClient)

func WithLogger(l logging.Logger) Option {
	return func(c *GRPCClient) { c.log = l }
}

// WithRequestTimeout bounds every unary call, retries included.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *GRPCClient) { c.timeout = d }
}

// WithSessionStore makes the provider-held session survive restarts.
func WithSessionStore(s SessionStore) Option {
	return func(c *GRPCClient) { c.store = s }
}

// WithDialOptions appends raw dial options, e.g. a bufconn dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

// WithWatchBackoff sets the delay schedule for reopening the session event
// stream.
func WithWatchBackoff(b retry.BackoffFunc) Option {
	return func(c *GRPCClient) { c.watchBackoff = b }
}

func NewIdentityClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{
		endpointURL: endpointURL,
		log:         logging.Nop{},
		timeout:     common.DefaultRequestTimeout,
		subs:        make(map[uint64]func(models.Event)),

		watchBackoff: retry.BackoffExponentialWithJitterBounded(500*time.Millisecond, 0.2, 30*time.Second),
	}
	for _, o := range opts {
		o(c)
	}
	c.refresher = c.refreshRemote

	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *GRPCClient) InitGRPCClient() error {
	logger := interceptorLogger(c.log)

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(
			timeout.UnaryClientInterceptor(c.timeout),
			grpclogging.UnaryClientInterceptor(logger, grpclogging.WithLogOnEvents(grpclogging.FinishCall)),
			retry.UnaryClientInterceptor(
				retry.WithCodes(codes.Unavailable),
				retry.WithMax(3),
				retry.WithBackoff(retry.BackoffLinear(100*time.Millisecond)),
			),
			c.accessTokenInterceptor,
		),
		grpc.WithChainStreamInterceptor(
			grpclogging.StreamClientInterceptor(logger, grpclogging.WithLogOnEvents(grpclogging.StartCall, grpclogging.FinishCall)),
			c.streamAccessTokenInterceptor,
		),
	}
	opts = append(opts, c.dialOpts...)

	conn, err := grpc.NewClient(c.endpointURL, opts...)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func hasAccessToken(ctx context.Context) bool {
	md, ok := metadata.FromOutgoingContext(ctx)
	return ok && len(md.Get(common.AccessTokenHeaderName)) > 0
}

func (c *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	// explicit tokens and the refresh call itself pass through untouched
	if method == MethodRefreshSession || hasAccessToken(ctx) {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	token := c.accessToken(ctx)
	if token == "" {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if err == nil || !errors.Is(mapError(err), common.ErrTokenExpired) {
		return err
	}

	if err := c.refresh(ctx, token); err != nil {
		return err
	}

	// tokens refreshed, retry once with the new access token
	return invoker(withAccessToken(ctx, c.accessToken(ctx)), method, req, reply, cc, opts...)
}

func (c *GRPCClient) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	if !hasAccessToken(ctx) {
		if token := c.accessToken(ctx); token != "" {
			ctx = withAccessToken(ctx, token)
		}
	}
	return streamer(ctx, desc, cc, method, opts...)
}

// refresh swaps the session behind stale for a fresh one. Concurrent callers
// that lost the race find the token already replaced and return at once.
func (c *GRPCClient) refresh(ctx context.Context, stale string) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cur := c.current(ctx)
	if cur == nil || cur.RefreshToken == "" {
		return common.ErrTokenExpired
	}
	if cur.AccessToken != stale {
		return nil
	}

	fresh, err := c.refresher(ctx, cur.RefreshToken)
	if err != nil {
		return mapError(err)
	}

	c.setCurrent(ctx, fresh)
	c.log.Debug(ctx, "access token refreshed", "subject", fresh.SubjectID)
	c.publish(models.Event{Kind: models.EventTokenRefreshed, Session: fresh.Clone()})
	return nil
}

func (c *GRPCClient) refreshRemote(ctx context.Context, refreshToken string) (*models.Session, error) {
	req, err := newStruct(map[string]any{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}
	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, MethodRefreshSession, req, reply); err != nil {
		return nil, err
	}
	s, err := sessionFrom(reply)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: refresh returned no session", ErrMalformedResponse)
	}
	return s, nil
}

func (c *GRPCClient) current(ctx context.Context) *models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded && c.store != nil {
		s, err := c.store.LoadSession(ctx)
		if err != nil {
			c.log.Warn(ctx, "load provider session", "error", err)
			return nil
		}
		c.session = s
	}
	c.loaded = true
	return c.session
}

func (c *GRPCClient) accessToken(ctx context.Context) string {
	if s := c.current(ctx); s != nil {
		return s.AccessToken
	}
	return ""
}

func (c *GRPCClient) setCurrent(ctx context.Context, s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = s.Clone()
	c.loaded = true
	if c.store != nil {
		if err := c.store.SaveSession(ctx, s); err != nil {
			c.log.Warn(ctx, "save provider session", "error", err)
		}
	}
}

func (c *GRPCClient) clearCurrent(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = nil
	c.loaded = true
	if c.store != nil {
		if err := c.store.ClearSession(ctx); err != nil {
			c.log.Warn(ctx, "clear provider session", "error", err)
		}
	}
}

func (c *GRPCClient) invoke(ctx context.Context, method string, fields map[string]any) (*structpb.Struct, error) {
	req, err := newStruct(fields)
	if err != nil {
		return nil, err
	}
	reply := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *GRPCClient) RequestOneTimeCode(ctx context.Context, email string, purpose models.Purpose, allowAccountCreation bool) error {
	_, err := c.invoke(ctx, MethodRequestOneTimeCode, map[string]any{
		"email":       email,
		"purpose":     string(purpose),
		"create_user": allowAccountCreation,
	})
	return mapError(err)
}

func (c *GRPCClient) VerifyOneTimeCode(ctx context.Context, email, code string, purpose models.Purpose) (*models.Session, error) {
	reply, err := c.invoke(ctx, MethodVerifyOneTimeCode, map[string]any{
		"email":   email,
		"token":   code,
		"purpose": string(purpose),
	})
	if err != nil {
		return nil, mapVerifyError(err)
	}

	s, err := sessionFrom(reply)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: verified code without session", ErrMalformedResponse)
	}

	c.setCurrent(ctx, s)
	return s.Clone(), nil
}

func (c *GRPCClient) GetCurrentSession(ctx context.Context) (*models.Session, error) {
	if c.current(ctx) == nil {
		return nil, nil
	}

	reply, err := c.invoke(ctx, MethodGetSession, map[string]any{})
	if err != nil {
		err = mapError(err)
		if errors.Is(err, common.ErrUnauthorized) || errors.Is(err, common.ErrTokenExpired) {
			c.clearCurrent(ctx)
			return nil, nil
		}
		return nil, err
	}

	s, err := sessionFrom(reply)
	if err != nil {
		return nil, err
	}
	if s == nil {
		c.clearCurrent(ctx)
		return nil, nil
	}
	c.setCurrent(ctx, s)
	return s.Clone(), nil
}

func (c *GRPCClient) SetSession(ctx context.Context, s *models.Session) error {
	if s == nil || s.AccessToken == "" {
		return common.ErrNotAuthenticated
	}

	reply, err := c.invoke(withAccessToken(ctx, s.AccessToken), MethodSetSession, map[string]any{
		"access_token":  s.AccessToken,
		"refresh_token": s.RefreshToken,
	})
	if err != nil {
		return mapError(err)
	}

	confirmed, err := sessionFrom(reply)
	if err != nil {
		return err
	}
	if confirmed == nil {
		confirmed = s
	}
	c.setCurrent(ctx, confirmed)
	return nil
}

// SignOut invalidates the session remotely and always forgets it locally.
func (c *GRPCClient) SignOut(ctx context.Context, scope string) error {
	if scope == "" {
		scope = common.DefaultSignOutScope
	}
	if c.current(ctx) == nil {
		return nil
	}

	_, err := c.invoke(ctx, MethodSignOut, map[string]any{"scope": scope})
	c.clearCurrent(ctx)
	return mapError(err)
}

func (c *GRPCClient) UpdateCredential(ctx context.Context, accessToken, password string) error {
	if accessToken != "" {
		ctx = withAccessToken(ctx, accessToken)
	}
	if _, err := c.invoke(ctx, MethodUpdateCredential, map[string]any{"password": password}); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *GRPCClient) FetchProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	reply, err := c.invoke(ctx, MethodGetProfile, map[string]any{"id": id})
	if err != nil {
		return nil, mapError(err)
	}
	return profileFrom(reply)
}

func (c *GRPCClient) UpsertProfile(ctx context.Context, rec models.ProfileRecord) error {
	_, err := c.invoke(ctx, MethodUpsertProfile, recordFields(rec))
	return mapError(err)
}
