// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"context"
	"fmt"

	"github.com/diffeo/go-orm/orm"
	"github.com/diffeo/go-orm/restdata"
	"github.com/sirupsen/logrus"
)

// Root returns the API root document, retrieving it the first time.
// If the root carries a "base" link relation to some other URL, that
// document is used instead.
func (api *API) Root(ctx context.Context) (*orm.Resource, error) {
	api.mu.Lock()
	root := api.root
	api.mu.Unlock()
	if root != nil && root.Retrieved() {
		return root, nil
	}

	root, err := api.RetrieveResource(ctx, api.baseURL, nil)
	if err != nil {
		return nil, err
	}
	if base, ok := root.Links()["base"]; ok && base != api.baseURL && base != root.URL() {
		api.logger.WithField("base", base).Debug("following base link")
		root, err = api.RetrieveResource(ctx, base, nil)
		if err != nil {
			return nil, err
		}
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	api.root = root
	return root, nil
}

// Manager finds a manager on the root document by attribute name,
// such as "nodes" for the "node-list" relation.
func (api *API) Manager(ctx context.Context, name string) (*orm.Manager, error) {
	root, err := api.Root(ctx)
	if err != nil {
		return nil, err
	}
	if m, ok := root.Manager(name); ok {
		return m, nil
	}
	return nil, orm.ErrAttributeNotFound{Name: name, URL: root.URL()}
}

// Login exchanges a username and password for a token, which is sent
// with every later request.  Any previous login is dropped first, and
// the root document is fetched again on next use since its links may
// depend on who is asking.
func (api *API) Login(ctx context.Context, username, password string) error {
	api.Logout()
	m, err := api.Manager(ctx, "get_auth_token")
	if err != nil {
		return err
	}
	result, err := m.Invoke(ctx, orm.Fields{"username": username, "password": password})
	if err != nil {
		return err
	}
	var token restdata.TokenResponse
	if err := result.Decode(&token); err != nil {
		return err
	}
	if token.Token == "" {
		return fmt.Errorf("no token returned for %v", username)
	}

	api.mu.Lock()
	api.authorization = "Token " + token.Token
	if api.root != nil {
		api.root.Reset()
	}
	api.mu.Unlock()
	api.logger.WithFields(logrus.Fields{"username": username}).Info("logged in")
	return nil
}

// Logout forgets the authorization token.
func (api *API) Logout() {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.authorization = ""
}
