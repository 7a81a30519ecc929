// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"testing"

	"github.com/diffeo/go-orm/orm"
	"github.com/stretchr/testify/assert"
)

func TestParseAssignments(t *testing.T) {
	fields, err := parseAssignments([]string{"name=n1", "age=3", "up=true", "note=a=b", "empty="})
	if assert.NoError(t, err) {
		assert.Equal(t, orm.Fields{
			"name":  "n1",
			"age":   3,
			"up":    true,
			"note":  "a=b",
			"empty": "",
		}, fields)
	}

	_, err = parseAssignments([]string{"name"})
	assert.Error(t, err)
	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "http://h/nodes/1/", parseValue("http://h/nodes/1/"))
	assert.Equal(t, "[1, 2]", parseValue("[1, 2]"))
}
