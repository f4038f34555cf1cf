package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const sample = `{
	"name": "studio-a",
	"me": {"host": "localhost", "port": 8000},
	"peers": [{"host": "10.0.0.2", "port": 8000}, {"host": "10.0.0.3", "port": 8001}],
	"tools": [{"host": "localhost", "port": 9000}]
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(sample))
	assert.Nil(t, err, "parse failed")

	assert.Equal(t, "studio-a", s.Name, "wrong name")
	assert.Equal(t, "localhost:8000", s.Me.Addr(), "wrong me address")
	assert.Equal(t, 2, len(s.Peers), "wrong peer count")
	assert.Equal(t, "http://10.0.0.3:8001", s.Peers[1].URL(), "wrong peer url")
	assert.Equal(t, 1, len(s.Tools), "wrong tool count")
}

func TestParseEmptyLists(t *testing.T) {
	s, err := Parse([]byte(`{"name":"solo","me":{"host":"","port":8000}}`))
	assert.Nil(t, err, "parse failed")
	assert.Empty(t, s.Peers, "peers should be empty")
	assert.Equal(t, ":8000", s.Me.Addr(), "empty host should bind all interfaces")
}

func TestValidate(t *testing.T) {
	_, err := Parse([]byte(`{"me":{"host":"localhost","port":8000}}`))
	assert.Equal(t, ErrNoName, err, "missing name accepted")

	_, err = Parse([]byte(`{"name":"x","me":{"host":"localhost","port":0}}`))
	assert.NotNil(t, err, "zero port accepted")

	_, err = Parse([]byte(`{"name":"x","me":{"host":"localhost","port":1},"peers":[{"host":"p","port":70000}]}`))
	assert.NotNil(t, err, "bad peer port accepted")
	assert.Contains(t, err.Error(), "peers[0]", "error should name the field")
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"name":`))
	assert.NotNil(t, err, "malformed json accepted")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	err := os.WriteFile(path, []byte(sample), 0600)
	assert.Nil(t, err, "write settings")

	s, err := Load(path)
	assert.Nil(t, err, "load failed")
	assert.Equal(t, "studio-a", s.Name, "wrong name")

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.NotNil(t, err, "missing file accepted")
}
