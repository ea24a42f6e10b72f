package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/senyabanana/hospital-service/internal/metrics"
	"github.com/senyabanana/hospital-service/internal/utils"

	"golang.org/x/time/rate"
)

const (
	maxLimiters   = 10000
	limiterIdle   = 3 * time.Minute
	sweepInterval = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter - ограничитель частоты запросов по адресу клиента.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	lastSweep time.Time
	rate      rate.Limit
	burst     int
	trusted   []netip.Prefix
	metrics   *metrics.Metrics

	Now func() time.Time
}

// NewRateLimiter создаёт ограничитель на rps запросов в секунду.
// Заголовки X-Forwarded-For и X-Real-IP учитываются только от адресов из trustedProxies.
func NewRateLimiter(rps float64, burst int, trustedProxies []string, m *metrics.Metrics) (*RateLimiter, error) {
	trusted, err := ParseTrustedProxies(trustedProxies)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(rps),
		burst:    burst,
		trusted:  trusted,
		metrics:  m,
		Now:      time.Now,
	}, nil
}

// ParseTrustedProxies разбирает список адресов и подсетей доверенных прокси.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if strings.Contains(value, "/") {
			prefix, err := netip.ParsePrefix(value)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", value, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", value, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Allow расходует один токен клиента key.
func (rl *RateLimiter) Allow(key string) bool {
	now := rl.Now()

	rl.mu.Lock()
	entry, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) >= maxLimiters || now.Sub(rl.lastSweep) >= sweepInterval {
			rl.sweep(now)
		}
		entry = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// sweep удаляет лимитеры простаивающих клиентов. Если таблица всё ещё полна,
// вытесняется клиент, который дольше всех не обращался. Вызывается под mu.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.lastSweep = now
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterIdle {
			delete(rl.limiters, key)
		}
	}
	if len(rl.limiters) < maxLimiters {
		return
	}

	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, entry := range rl.limiters {
		if !found || entry.lastSeen.Before(oldest) {
			oldestKey, oldest, found = key, entry.lastSeen, true
		}
	}
	delete(rl.limiters, oldestKey)
}

// Middleware отвечает 429, когда клиент превысил лимит.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(rl.ClientIP(r)) {
			if rl.metrics != nil {
				rl.metrics.RateLimited.Inc()
			}
			w.Header().Set("Retry-After", "1")
			utils.SendErrorResponse(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP возвращает адрес клиента. Без доверенного прокси это адрес соединения.
func (rl *RateLimiter) ClientIP(r *http.Request) string {
	return clientIP(r, rl.trusted)
}

func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := remoteHost(r)
	if !isTrusted(peer, trusted) {
		return peer
	}

	// X-Forwarded-For читается справа налево до первого адреса не из доверенных прокси.
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if _, err := netip.ParseAddr(hop); err != nil {
				break
			}
			if !isTrusted(hop, trusted) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}
	return peer
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
