// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"net/http"
	"strings"
	"testing"

	"github.com/diffeo/go-orm/orm"
	"github.com/diffeo/go-orm/restdata"
	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	for _, tc := range []struct {
		base, id string
		query    map[string]string
		expected string
	}{
		{"http://h/nodes/", "", nil, "http://h/nodes/"},
		{"http://h/nodes/", "3", nil, "http://h/nodes/3/"},
		{"http://h/nodes", "3", nil, "http://h/nodes/3/"},
		{"http://h/nodes/", "a b", nil, "http://h/nodes/-YSBi/"},
		{"http://h/nodes/", "", map[string]string{"name": "n 1", "age": "3"}, "http://h/nodes/?age=3&name=n%201"},
	} {
		actual, err := expand(tc.base, tc.id, tc.query)
		if assert.NoError(t, err) {
			assert.Equal(t, tc.expected, actual)
		}
	}
}

func TestValidateResponse(t *testing.T) {
	resp := &restdata.Response{
		Method:     "GET",
		URL:        "http://h/nodes/1/",
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{restdata.JSONMediaType}},
		Body:       []byte(`{"detail":"gone"}`),
	}
	assert.NoError(t, ValidateResponse(resp, http.StatusOK))

	err := ValidateResponse(resp, http.StatusCreated, http.StatusAccepted)
	if statusErr, ok := err.(*orm.ResponseStatusError); assert.True(t, ok) {
		assert.Equal(t, "gone", statusErr.Detail)
		assert.Equal(t, []int{http.StatusCreated, http.StatusAccepted}, statusErr.Expected)
		assert.Contains(t, statusErr.Error(), "201, 202")
	}

	resp.Body = []byte(`{"name":"n1"}`)
	err = ValidateResponse(resp, http.StatusCreated)
	if statusErr, ok := err.(*orm.ResponseStatusError); assert.True(t, ok) {
		assert.Equal(t, map[string]interface{}{"name": "n1"}, statusErr.Detail)
	}

	resp.Header.Set("Content-Type", "text/html")
	resp.Body = []byte(strings.Repeat("x", 300))
	err = ValidateResponse(resp, http.StatusCreated)
	if statusErr, ok := err.(*orm.ResponseStatusError); assert.True(t, ok) {
		assert.Equal(t, strings.Repeat("x", 200)+"[...]", statusErr.Detail)
	}
}
