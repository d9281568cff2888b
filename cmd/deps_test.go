package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/preptime/internal/config"
)

func TestOpenStore_None(t *testing.T) {
	st, err := openStore(context.Background(), config.StoreConfig{Driver: "none"})

	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := openStore(context.Background(), config.StoreConfig{Driver: "oracle"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown store driver")
}

func TestOpenStore_SQLite(t *testing.T) {
	st, err := openStore(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: t.TempDir() + "/orders.db",
	})

	require.NoError(t, err)
	require.NotNil(t, st)
	assert.NoError(t, st.Close())
}
