package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) (pathname string, cleanup func()) {
	dir, err := ioutil.TempDir("", "test-pathkv-config-")
	require.Nil(t, err)
	pathname = filepath.Join(dir, "kvserver.config")
	require.Nil(t, ioutil.WriteFile(pathname, []byte(contents), 0600))
	return pathname, func() {
		_ = os.RemoveAll(dir)
	}
}

func TestConfig(t *testing.T) {
	t.Run("missing file means defaults", func(t *testing.T) {
		c, err := loadConfig(filepath.Join(os.TempDir(), "no-such-pathkv.config"))
		require.Nil(t, err)
		c.applyDefaultsForMissingProperties()
		require.Nil(t, c.validate())
		assert.Equal(t, "127.0.0.1:1337", c.Address)
		assert.Equal(t, "memory", c.Backend.Type)
		assert.Zero(t, c.readTimeout)
		assert.Zero(t, c.MaxValueSize)
	})
	t.Run("rjson file with unquoted keys and no commas", func(t *testing.T) {
		pathname, cleanup := writeConfig(t, `{
			address: ":8080"
			debug: true
			read_timeout: "30s"
			max_value_size: 1024
			backend: {
				type: "bolt"
			}
		}`)
		defer cleanup()
		c, err := loadConfig(pathname)
		require.Nil(t, err)
		c.applyDefaultsForMissingProperties()
		require.Nil(t, c.validate())
		assert.Equal(t, ":8080", c.Address)
		assert.True(t, c.Debug)
		assert.Equal(t, 30*time.Second, c.readTimeout)
		assert.EqualValues(t, 1024, c.MaxValueSize)
		assert.Equal(t, "$HOME/lib/pathkv/values.db", c.Backend.Path)
	})
	t.Run("s3 backend", func(t *testing.T) {
		pathname, cleanup := writeConfig(t, `{
			backend: {
				type: "s3"
				profile: "pathkv"
				region: "eu-west-2"
				bucket: "pathkv-values"
			}
		}`)
		defer cleanup()
		c, err := loadConfig(pathname)
		require.Nil(t, err)
		c.applyDefaultsForMissingProperties()
		require.Nil(t, c.validate())
		assert.Equal(t, "pathkv-values", c.Backend.Bucket)
		assert.Empty(t, c.Backend.Path)
	})
	t.Run("malformed file is an error", func(t *testing.T) {
		pathname, cleanup := writeConfig(t, `{address: `)
		defer cleanup()
		_, err := loadConfig(pathname)
		assert.NotNil(t, err)
	})
	t.Run("invalid values are rejected", func(t *testing.T) {
		for _, contents := range []string{
			`{read_timeout: "soon"}`,
			`{read_timeout: "-1s"}`,
			`{max_value_size: -1}`,
			`{backend: {type: "tape"}}`,
			`{backend: {type: "dynamodb", region: "eu-west-2"}}`,
			`{backend: {type: "s3", region: "eu-west-2"}}`,
			`{backend: {type: "s3", bucket: "values"}}`,
		} {
			pathname, cleanup := writeConfig(t, contents)
			c, err := loadConfig(pathname)
			require.Nil(t, err, contents)
			c.applyDefaultsForMissingProperties()
			assert.NotNil(t, c.validate(), contents)
			cleanup()
		}
	})
}

func TestOpenStore(t *testing.T) {
	dir, err := ioutil.TempDir("", "test-pathkv-open-")
	require.Nil(t, err)
	defer func() {
		_ = os.RemoveAll(dir)
	}()
	for _, typ := range []string{"memory", "bolt", "disk"} {
		t.Run(typ, func(t *testing.T) {
			c := new(config)
			c.Backend.Type = typ
			c.Backend.Path = filepath.Join(dir, typ, "values")
			c.applyDefaultsForMissingProperties()
			require.Nil(t, c.validate())
			store, closer, err := openStore(c)
			require.Nil(t, err)
			defer closer()
			_, replaced, err := store.Put([]byte("k"), []byte("v"))
			require.Nil(t, err)
			assert.False(t, replaced)
			n, err := store.Size()
			require.Nil(t, err)
			assert.Equal(t, 1, n)
		})
	}
}
