//go:build windows

package execx

import "golang.org/x/sys/windows"

// shortAlias resolves the DOS 8.3 short form of the path, which contains no
// spaces or special characters and bypasses reparse-point quirks.
func shortAlias(path string) (string, error) {
	long, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return "", err
	}

	n, err := windows.GetShortPathName(long, nil, 0)
	if err != nil {
		return "", err
	}
	buf := make([]uint16, n)
	if _, err := windows.GetShortPathName(long, &buf[0], n); err != nil {
		return "", err
	}
	return windows.UTF16ToString(buf), nil
}
