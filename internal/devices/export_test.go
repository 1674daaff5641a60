package devices

// SetV4LDir points ResolveDevicePath at dir for the duration of a test.
func SetV4LDir(dir string) func() {
	old := v4lDir
	v4lDir = dir
	return func() { v4lDir = old }
}
