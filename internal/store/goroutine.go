package store

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// goroutineID returns the id of the calling goroutine, parsed from the
// header line of its stack trace ("goroutine 42 [running]:"). Ids start at
// 1, so 0 is free to mean "nobody".
//
// The store needs it to tell a nested dispatch (same goroutine, must fail
// fast) from a concurrent one (other goroutine, must wait for the lock).
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := bytes.TrimPrefix(buf[:n], goroutinePrefix)
	end := bytes.IndexByte(header, ' ')
	if end <= 0 {
		panic("reducto: unexpected goroutine stack header: " + string(buf[:n]))
	}
	id, err := strconv.ParseInt(string(header[:end]), 10, 64)
	if err != nil {
		panic("reducto: cannot parse goroutine id: " + err.Error())
	}
	return id
}
