package cli

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/edumarket/internal/client/services"
)

// navigator tracks the page the user is on. The REPL has no pages, but the
// auth flows route between the login page and the rest of the app.
type navigator struct {
	mu    sync.Mutex
	route string
}

func newNavigator(route string) *navigator { return &navigator{route: route} }

func (n *navigator) CurrentRoute() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.route
}

func (n *navigator) Navigate(route string) {
	n.mu.Lock()
	n.route = route
	n.mu.Unlock()
}

// notifier prints toast-style notices between prompts.
type notifier struct{}

func (notifier) Notify(_ context.Context, level services.Level, text string) {
	prefix := "[i] "
	if level == services.LevelError {
		prefix = "[!] "
	}
	printlnFn(prefix + text)
}
