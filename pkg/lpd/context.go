package lpd

import "context"

type peerKey struct{}

// WithPeer returns a context carrying the client address of the connection
// being served.
func WithPeer(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, peerKey{}, addr)
}

// PeerFromContext returns the client address stored by WithPeer, or
// "unknown".
func PeerFromContext(ctx context.Context) string {
	if addr, ok := ctx.Value(peerKey{}).(string); ok && addr != "" {
		return addr
	}
	return "unknown"
}
