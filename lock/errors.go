package lock

import "errors"

// ErrNilStore 未提供任务存储.
var ErrNilStore = errors.New("lock: store is nil")
