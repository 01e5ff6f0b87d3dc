package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miguelemosreverte/otbr-web/internal/cli"
)

func TestDatasetSetterDecodesByKind(t *testing.T) {
	var paths, bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(data))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client, err := cli.NewClient(srv.URL, time.Second)
	require.NoError(t, err)

	set, err := datasetSetter(client, "active", []byte(`{"NetworkName":"OpenThread","Channel":15}`))
	require.NoError(t, err)
	created, err := set(context.Background())
	require.NoError(t, err)
	assert.True(t, created)

	set, err = datasetSetter(client, "pending", []byte(`{"ActiveDataset":{"Channel":20},"Delay":30000}`))
	require.NoError(t, err)
	_, err = set(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"/node/dataset/active", "/node/dataset/pending"}, paths)
	assert.JSONEq(t, `{"NetworkName":"OpenThread","Channel":15}`, bodies[0])
	assert.JSONEq(t, `{"ActiveDataset":{"Channel":20},"Delay":30000}`, bodies[1])

	_, err = datasetSetter(client, "active", []byte(`{"Channel":"fifteen"}`))
	assert.ErrorContains(t, err, "invalid dataset file")
}

func TestNoDatasetMessage(t *testing.T) {
	err := noDataset("pending", fmt.Errorf("get: %w", cli.ErrNoDataset))
	assert.EqualError(t, err, "no pending dataset is configured")

	other := errors.New("connection refused")
	assert.Equal(t, other, noDataset("active", other))
}
