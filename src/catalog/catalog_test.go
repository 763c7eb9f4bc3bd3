package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oci-volume-backup/src/catalog"
	"oci-volume-backup/src/engine"
	"oci-volume-backup/src/errdefs"
	"oci-volume-backup/src/remote"
)

func names(vols []catalog.Volume) []string {
	out := make([]string, 0, len(vols))
	for _, v := range vols {
		out = append(out, v.Name)
	}
	return out
}

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a\nb\nc\n", []string{"a", "b", "c"}},
		{"", []string{}},
		{"\n\n", []string{}},
		{"only", []string{"only"}},
		{"z\na\nz\n", []string{"z", "a", "z"}},
		{"x\r\ny\r\n", []string{"x", "y"}},
		{"a\n\nb\n", []string{"a", "b"}},
	}
	for _, c := range cases {
		vols, err := catalog.Parse([]byte(c.in))
		require.NoError(t, err, "input %q", c.in)
		assert.Equal(t, c.want, names(vols), "input %q", c.in)
	}
}

func TestParse_InvalidUTF8(t *testing.T) {
	_, err := catalog.Parse([]byte{'a', '\n', 0xff, 0xfe})
	assert.ErrorIs(t, err, errdefs.ErrDecoding)
}

func TestListVolumes_UsesEngineCommand(t *testing.T) {
	cmds, err := engine.NewCommands(engine.Podman, "")
	require.NoError(t, err)
	fake := remote.NewFake()
	fake.Outputs[cmds.ListVolumes()] = []byte("db\nweb\n")

	vols, err := catalog.ListVolumes(context.Background(), cmds, fake)
	require.NoError(t, err)
	assert.Equal(t, []string{"db", "web"}, names(vols))
	assert.Equal(t, []string{"podman volume ls -f 'driver=local' --format '{{.Name}}'"}, fake.Commands)
}

func TestListVolumes_Empty(t *testing.T) {
	cmds, _ := engine.NewCommands(engine.Docker, "")
	vols, err := catalog.ListVolumes(context.Background(), cmds, remote.NewFake())
	require.NoError(t, err)
	assert.NotNil(t, vols)
	assert.Len(t, vols, 0)
}

func TestListVolumes_PropagatesRunnerError(t *testing.T) {
	cmds, _ := engine.NewCommands(engine.Docker, "")
	fake := remote.NewFake()
	fake.Errors[cmds.ListVolumes()] = errdefs.ErrChannel
	_, err := catalog.ListVolumes(context.Background(), cmds, fake)
	assert.True(t, errors.Is(err, errdefs.ErrChannel))
}

func TestFilter(t *testing.T) {
	vols := []catalog.Volume{{Name: "a"}, {Name: "b"}, {Name: "c"}}

	got, err := catalog.Filter(vols, nil)
	require.NoError(t, err)
	assert.Equal(t, vols, got)

	got, err = catalog.Filter(vols, []string{"c", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, names(got))

	_, err = catalog.Filter(vols, []string{"a", "x", "y"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrConfiguration)
	assert.Contains(t, err.Error(), "x, y")
}
