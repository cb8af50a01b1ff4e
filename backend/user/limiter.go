package user

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter map; idle buckets are swept past it.
const maxTrackedClients = 4096

// LoginLimiter throttles login attempts per client address, so one client
// exhausting its bucket never locks out another.
type LoginLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

// NewLoginLimiter allows perMinute attempts per client with the given burst.
// It returns nil, which allows everything, when perMinute is not positive.
func NewLoginLimiter(perMinute, burst int) *LoginLimiter {
	if perMinute <= 0 {
		return nil
	}
	return &LoginLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   max(burst, 1),
		clients: make(map[string]*rate.Limiter),
	}
}

// Allow spends one attempt for the client that sent r.
func (l *LoginLimiter) Allow(r *http.Request) bool {
	if l == nil {
		return true
	}
	key := clientKey(r)

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.sweep()
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[key] = lim
	}
	return lim.Allow()
}

// sweep drops buckets that have refilled completely.
func (l *LoginLimiter) sweep() {
	for key, lim := range l.clients {
		if lim.Tokens() >= float64(l.burst) {
			delete(l.clients, key)
		}
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
