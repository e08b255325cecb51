//go:build !unix

package platform

import "runtime"

func machine() (string, error) {
	return goarchMachine(runtime.GOARCH), nil
}
