package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, chunks <-chan string, errs <-chan error) ([]string, error) {
	t.Helper()
	var got []string
	for c := range chunks {
		got = append(got, c)
	}
	return got, <-errs
}

func TestOllamaChat_SendsHistoryAndReturnsReply(t *testing.T) {
	var gotReq ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"hi there"},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3:8b")
	reply, err := p.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	require.Equal(t, "hi there", reply)
	require.Equal(t, "llama3:8b", gotReq.Model)
	require.False(t, gotReq.Stream)
	require.Len(t, gotReq.Messages, 2)
	require.Equal(t, "system", gotReq.Messages[0].Role)
}

func TestOllamaChat_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL, "m").Chat(context.Background(), nil)
	require.ErrorContains(t, err, "status 502")
}

func TestOllamaStreamChat_DecodesFramesInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaChatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.True(t, req.Stream)
		for _, c := range []string{"Hel", "lo", " world"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", c)
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`+"\n")
	}))
	defer srv.Close()

	chunks, errs := NewOllamaProvider(srv.URL, "m").StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	got, err := collect(t, chunks, errs)
	require.NoError(t, err)
	require.Equal(t, []string{"Hel", "lo", " world"}, got)
}

func TestOllamaStreamChat_ErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"content":"par"},"done":false}`+"\n")
		fmt.Fprint(w, `{"error":"model not loaded"}`+"\n")
	}))
	defer srv.Close()

	chunks, errs := NewOllamaProvider(srv.URL, "m").StreamChat(context.Background(), nil)
	got, err := collect(t, chunks, errs)
	require.Equal(t, []string{"par"}, got)
	require.EqualError(t, err, "model not loaded")
}

func TestOllamaListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		fmt.Fprint(w, `{"models":[{"name":"llama3:latest"},{"name":"qwen2.5:7b"}]}`)
	}))
	defer srv.Close()

	models, err := NewOllamaProvider(srv.URL+"/", "").ListModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"llama3:latest", "qwen2.5:7b"}, models)
}
