package keygen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"batchinsert/errors"
)

const (
	// 起始时间戳 (2023-01-01 00:00:00 UTC)
	snowflakeEpoch int64 = 1672531200000

	workerIDBits     = 5
	datacenterIDBits = 5
	sequenceBits     = 12

	maxWorkerID     = -1 ^ (-1 << workerIDBits)     // 31
	maxDatacenterID = -1 ^ (-1 << datacenterIDBits) // 31
	maxSequence     = -1 ^ (-1 << sequenceBits)     // 4095

	workerIDShift      = sequenceBits
	datacenterIDShift  = sequenceBits + workerIDBits
	timestampLeftShift = sequenceBits + workerIDBits + datacenterIDBits
)

// SnowflakeAllocator 基于雪花算法的本地 ID 分配器
//
// 同一批次的 ID 在一次加锁内连续生成，批内有序，跨进程依赖 datacenter/worker 区分。
type SnowflakeAllocator struct {
	mu            sync.Mutex
	datacenterID  int64
	workerID      int64
	sequence      int64
	lastTimestamp int64
	now           func() int64
}

// NewSnowflakeAllocator 创建分配器，datacenterID 与 workerID 取值 0..31
func NewSnowflakeAllocator(datacenterID, workerID int64) (*SnowflakeAllocator, error) {
	if datacenterID < 0 || datacenterID > maxDatacenterID {
		return nil, errors.NewConfigurationError(fmt.Sprintf("snowflake datacenter ID %d out of range", datacenterID))
	}
	if workerID < 0 || workerID > maxWorkerID {
		return nil, errors.NewConfigurationError(fmt.Sprintf("snowflake worker ID %d out of range", workerID))
	}

	return &SnowflakeAllocator{
		datacenterID:  datacenterID,
		workerID:      workerID,
		lastTimestamp: -1,
		now:           func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Allocate 实现 IAllocator；key 对雪花算法无意义
func (a *SnowflakeAllocator) Allocate(ctx context.Context, _ string, n int) ([]int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]int64, 0, n)
	for len(ids) < n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, err := a.nextLocked()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (a *SnowflakeAllocator) nextLocked() (int64, error) {
	now := a.now()
	if now < a.lastTimestamp {
		return 0, errors.NewError(errors.ErrCodeInternal, "clock moved backwards, refusing to generate id")
	}

	if now == a.lastTimestamp {
		a.sequence = (a.sequence + 1) & maxSequence
		if a.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= a.lastTimestamp {
				now = a.now()
			}
		}
	} else {
		a.sequence = 0
	}
	a.lastTimestamp = now

	return ((now - snowflakeEpoch) << timestampLeftShift) |
		(a.datacenterID << datacenterIDShift) |
		(a.workerID << workerIDShift) |
		a.sequence, nil
}

// ParseSnowflake 拆解 ID 的时间戳（毫秒）、datacenter、worker 与序列号
func ParseSnowflake(id int64) (timestamp, datacenterID, workerID, sequence int64) {
	return (id >> timestampLeftShift) + snowflakeEpoch,
		(id >> datacenterIDShift) & maxDatacenterID,
		(id >> workerIDShift) & maxWorkerID,
		id & maxSequence
}
