package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func robotsServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, body)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAllowOverridesBroaderDisallow(t *testing.T) {
	t.Parallel()

	server := robotsServer(t, "User-agent: *\nDisallow: /private/\nAllow: /private/docs/\n")
	policy := NewRobotsEnforcer(true, "normascout-bot/0.1", zaptest.NewLogger(t))

	assert.True(t, policy.Allowed(context.Background(), server.URL+"/private/docs/x"))
	assert.False(t, policy.Allowed(context.Background(), server.URL+"/private/other"))
	assert.True(t, policy.Allowed(context.Background(), server.URL+"/public/page"))
}

func TestAgentSpecificGroupWins(t *testing.T) {
	t.Parallel()

	server := robotsServer(t, "User-agent: normascout-bot\nDisallow: /blocked/\n\nUser-agent: *\nDisallow:\n")
	policy := NewRobotsEnforcer(true, "normascout-bot/0.1", zaptest.NewLogger(t))

	assert.False(t, policy.Allowed(context.Background(), server.URL+"/blocked/page"))
	assert.True(t, policy.Allowed(context.Background(), server.URL+"/open/page"))
}

func TestMissingRobotsAllowsEverything(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	t.Cleanup(server.Close)

	policy := NewRobotsEnforcer(true, "normascout-bot/0.1", zaptest.NewLogger(t))
	assert.True(t, policy.Allowed(context.Background(), server.URL+"/anything"))
}

func TestUnreachableRobotsFailsOpen(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	target := server.URL
	server.Close()

	policy := NewRobotsEnforcer(true, "normascout-bot/0.1", zaptest.NewLogger(t))
	assert.True(t, policy.Allowed(context.Background(), target+"/page"))
}

func TestRespectToggleOffAllowsEverything(t *testing.T) {
	t.Parallel()

	policy := NewRobotsEnforcer(false, "normascout-bot/0.1", zaptest.NewLogger(t))
	assert.True(t, policy.Allowed(context.Background(), "https://example.com/private/x"))
}

func TestRobotsFetchedOncePerHost(t *testing.T) {
	t.Parallel()

	fetches := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fetches++
			fmt.Fprint(w, "User-agent: *\nDisallow: /secret/\n")
		}
	}))
	t.Cleanup(server.Close)

	policy := NewRobotsEnforcer(true, "normascout-bot/0.1", zaptest.NewLogger(t))
	for i := 0; i < 5; i++ {
		policy.Allowed(context.Background(), fmt.Sprintf("%s/page/%d", server.URL, i))
	}
	assert.Equal(t, 1, fetches)
}
