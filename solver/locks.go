package solver

import "sync"

// LockTable guards the per region scalar flux accumulators during a sweep
type LockTable struct {
	locks []paddedMutex
}

// paddedMutex keeps neighboring locks off a shared cache line
type paddedMutex struct {
	sync.Mutex
	_ [56]byte
}

func NewLockTable(numRegions int) *LockTable {
	return &LockTable{locks: make([]paddedMutex, numRegions)}
}

func (lt *LockTable) Lock(r int)   { lt.locks[r].Lock() }
func (lt *LockTable) Unlock(r int) { lt.locks[r].Unlock() }
func (lt *LockTable) Len() int     { return len(lt.locks) }
