package devices_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/webcam/internal/devices"
)

func TestResolveDevicePath(t *testing.T) {
	root := t.TempDir()
	node := filepath.Join(root, "video2")
	require.NoError(t, os.WriteFile(node, nil, 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "v4l", "by-id"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "v4l", "by-path"), 0o755))
	require.NoError(t, os.Symlink("../../video2", filepath.Join(root, "v4l", "by-id", "usb-046d_C920-video-index0")))
	require.NoError(t, os.Symlink("../../video2", filepath.Join(root, "v4l", "by-path", "platform-fe800000.usb-video-index0")))
	defer devices.SetV4LDir(filepath.Join(root, "v4l"))()

	want, err := filepath.EvalSymlinks(node)
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		want    string
		wantErr bool
	}{
		{name: "by-id", id: "usb-046d_C920-video-index0", want: want},
		{name: "by-path", id: "platform-fe800000.usb-video-index0", want: want},
		{name: "full link", id: filepath.Join(root, "v4l", "by-id", "usb-046d_C920-video-index0"), want: want},
		{name: "node path", id: "/dev/video0", want: "/dev/video0"},
		{name: "node number", id: "3", want: "3"},
		{name: "missing", id: "usb-nope-video-index0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := devices.ResolveDevicePath(tt.id)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
