package grpcmw

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/storyweave/ratelimit/identity"
	"github.com/storyweave/ratelimit/limiter"
)

func newTestLimiter(t *testing.T, tiers map[string]limiter.Tier) *limiter.Limiter {
	t.Helper()
	l, err := limiter.New(&limiter.Config{
		StorageType: limiter.StorageMemory,
		Tiers:       tiers,
	})
	if err != nil {
		t.Fatalf("limiter.New failed: %v", err)
	}
	return l
}

func passHandler(ctx context.Context, req interface{}) (interface{}, error) {
	return "ok", nil
}

func unaryInfo() *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: "/stories.v1.StoryService/Generate"}
}

func peerContext(addr string) context.Context {
	return peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP(addr), Port: 50000},
	})
}

func TestUnaryServerInterceptor_AllowsUnderBudget(t *testing.T) {
	l := newTestLimiter(t, map[string]limiter.Tier{
		"ai_anonymous": {Capacity: 2, RefillRate: 0.5, CostPerRequest: 1},
	})
	intercept := UnaryServerInterceptor(l, FixedTier("ai_anonymous"))

	resp, err := intercept(peerContext("203.0.113.9"), nil, unaryInfo(), passHandler)
	if err != nil {
		t.Fatalf("interceptor returned error: %v", err)
	}
	if resp != "ok" {
		t.Errorf("resp = %v, want handler result", resp)
	}
}

func TestUnaryServerInterceptor_DeniesWithResourceExhausted(t *testing.T) {
	l := newTestLimiter(t, map[string]limiter.Tier{
		"ai_anonymous": {Capacity: 1, RefillRate: 0.1, CostPerRequest: 1},
	})
	intercept := UnaryServerInterceptor(l, FixedTier("ai_anonymous"))
	ctx := peerContext("203.0.113.9")

	if _, err := intercept(ctx, nil, unaryInfo(), passHandler); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}

	_, err := intercept(ctx, nil, unaryInfo(), passHandler)
	if err == nil {
		t.Fatal("second call should be throttled")
	}
	if status.Code(err) != codes.ResourceExhausted {
		t.Errorf("code = %v, want ResourceExhausted", status.Code(err))
	}
}

func TestUnaryServerInterceptor_SeparatePeersSeparateBuckets(t *testing.T) {
	l := newTestLimiter(t, map[string]limiter.Tier{
		"api_anonymous": {Capacity: 1, RefillRate: 0.1, CostPerRequest: 1},
	})
	intercept := UnaryServerInterceptor(l, FixedTier("api_anonymous"))

	if _, err := intercept(peerContext("203.0.113.9"), nil, unaryInfo(), passHandler); err != nil {
		t.Fatalf("peer A should pass: %v", err)
	}
	if _, err := intercept(peerContext("198.51.100.3"), nil, unaryInfo(), passHandler); err != nil {
		t.Fatalf("peer B should pass: %v", err)
	}
}

func TestUnaryServerInterceptor_UserOverridesPeer(t *testing.T) {
	l := newTestLimiter(t, map[string]limiter.Tier{
		"api_authenticated": {Capacity: 1, RefillRate: 0.1, CostPerRequest: 1},
	})
	intercept := UnaryServerInterceptor(l, FixedTier("api_authenticated"))

	// Same peer address, different authenticated users: separate buckets.
	for _, user := range []string{"1", "2"} {
		ctx := identity.WithUserID(peerContext("203.0.113.9"), user)
		if _, err := intercept(ctx, nil, unaryInfo(), passHandler); err != nil {
			t.Fatalf("user %s should pass: %v", user, err)
		}
	}
}

func TestUnaryServerInterceptor_UnknownTierIsInternal(t *testing.T) {
	l := newTestLimiter(t, nil)
	intercept := UnaryServerInterceptor(l, FixedTier("nonexistent_tier"))

	_, err := intercept(peerContext("203.0.113.9"), nil, unaryInfo(), passHandler)
	if status.Code(err) != codes.Internal {
		t.Errorf("code = %v, want Internal for an unknown tier", status.Code(err))
	}
}
