package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCourierMetrics(t *testing.T) {

	metrics := NewCourierMetrics("")
	assert.NotNil(t, metrics.Session.Commands)

	metrics = NewCourierMetrics(":9099")
	assert.NotNil(t, metrics.Session.Commands)
}
