// Package mock provides a scripted implementation of providers.Provider for
// testing. Each method delegates to an optional function field and counts its
// invocations, so tests can assert on provider traffic.
package mock

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/sonax/hubspot-connector/providers"
)

// Provider is a configurable mock for providers.Provider.
// The zero value fails every call; set the corresponding Func fields to
// script behavior.
type Provider struct {
	ExchangeCodeFunc func(ctx context.Context, code string) (*oauth2.Token, error)
	RefreshTokenFunc func(ctx context.Context, refreshToken string) (*oauth2.Token, error)
	AccountInfoFunc  func(ctx context.Context, accessToken string) (map[string]any, error)
	UsersFunc        func(ctx context.Context, accessToken string) ([]providers.User, error)

	mu            sync.Mutex
	exchangeCalls int
	refreshCalls  int
	accountCalls  int
	usersCalls    int
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "mock"
}

// ExchangeCode delegates to ExchangeCodeFunc.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	p.count(&p.exchangeCalls)
	if p.ExchangeCodeFunc == nil {
		return nil, fmt.Errorf("mock: ExchangeCode not scripted")
	}
	return p.ExchangeCodeFunc(ctx, code)
}

// RefreshToken delegates to RefreshTokenFunc.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	p.count(&p.refreshCalls)
	if p.RefreshTokenFunc == nil {
		return nil, fmt.Errorf("mock: RefreshToken not scripted")
	}
	return p.RefreshTokenFunc(ctx, refreshToken)
}

// AccountInfo delegates to AccountInfoFunc.
func (p *Provider) AccountInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	p.count(&p.accountCalls)
	if p.AccountInfoFunc == nil {
		return nil, fmt.Errorf("mock: AccountInfo not scripted")
	}
	return p.AccountInfoFunc(ctx, accessToken)
}

// Users delegates to UsersFunc.
func (p *Provider) Users(ctx context.Context, accessToken string) ([]providers.User, error) {
	p.count(&p.usersCalls)
	if p.UsersFunc == nil {
		return nil, fmt.Errorf("mock: Users not scripted")
	}
	return p.UsersFunc(ctx, accessToken)
}

// ExchangeCalls returns how often ExchangeCode was invoked.
func (p *Provider) ExchangeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls
}

// RefreshCalls returns how often RefreshToken was invoked.
func (p *Provider) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

// AccountInfoCalls returns how often AccountInfo was invoked.
func (p *Provider) AccountInfoCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.accountCalls
}

// UsersCalls returns how often Users was invoked.
func (p *Provider) UsersCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usersCalls
}

func (p *Provider) count(counter *int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	*counter++
}

// Interface guard.
var _ providers.Provider = (*Provider)(nil)
