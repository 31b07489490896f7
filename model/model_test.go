package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Model = (*MockModel)(nil)

func TestMockModel_CannedAndDefault(t *testing.T) {
	m := NewMockModel("mock-small", "mock")
	m.AddResponse("ping", "pong")

	resp, err := Collect(context.Background(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoFinalResponse)
	assert.Empty(t, resp.Text)

	respCh, errCh := m.Generate(context.Background(), Request{Model: "mock-small", Messages: []Message{{Role: RoleUser, Content: "ping"}}})
	resp, err = Collect(context.Background(), respCh, errCh, nil)
	require.NoError(t, err)
	assert.Equal(t, "pong", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, "mock-small", resp.Model)
	require.NotNil(t, resp.Usage)

	respCh, errCh = m.Generate(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "other"}}})
	resp, err = Collect(context.Background(), respCh, errCh, nil)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Text)
}

func TestMockModel_StreamingPartials(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.AddResponse("hi", "hello")

	var parts []string
	respCh, errCh := m.Generate(context.Background(), Request{Stream: true, Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	resp, err := Collect(context.Background(), respCh, errCh, func(r Response) { parts = append(parts, r.Text) })
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.Join(parts, ""))
	assert.Equal(t, "hello", resp.Text)
}

func TestMockModel_NoMessages(t *testing.T) {
	m := NewMockModel("mock", "mock")
	respCh, errCh := m.Generate(context.Background(), Request{})
	_, err := Collect(context.Background(), respCh, errCh, nil)
	assert.Error(t, err)
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	block := make(chan Response)
	_, err := Collect(ctx, block, nil, nil)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRequest_PromptText(t *testing.T) {
	r := Request{Instructions: "sys", Messages: []Message{{Content: "a"}, {Content: "b"}}}
	assert.Equal(t, "sysab", r.PromptText())
}
