package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mesa/pkg/logger"

	"github.com/robfig/cron/v3"
)

// 单次批处理最长执行时间
const batchRunTimeout = 30 * time.Minute

// BillingScheduler 在服务进程内按cron表达式每日触发订阅批处理
type BillingScheduler struct {
	batch   *BillingBatch
	spec    string
	cron    *cron.Cron
	entryID cron.EntryID
	mu      sync.Mutex
	running bool
}

// NewBillingScheduler 创建批处理调度器，上一次未结束时跳过本次触发
func NewBillingScheduler(batch *BillingBatch, spec string) *BillingScheduler {
	return &BillingScheduler{
		batch: batch,
		spec:  spec,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
			cron.SkipIfStillRunning(cron.DefaultLogger),
		)),
	}
}

// Start 启动调度器
func (s *BillingScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.spec, s.runDaily)
	if err != nil {
		return fmt.Errorf("无效的批处理cron表达式 %q: %v", s.spec, err)
	}
	s.entryID = entryID
	s.cron.Start()
	s.running = true

	logger.GetLogger().WithField("cron", s.spec).Info("订阅批处理调度器已启动")
	return nil
}

// Stop 停止调度器，等待正在执行的批处理结束
func (s *BillingScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron.Remove(s.entryID)
	s.running = false
	logger.GetLogger().Info("订阅批处理调度器已停止")
}

// NextRun 下一次触发时间
func (s *BillingScheduler) NextRun() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *BillingScheduler) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), batchRunTimeout)
	defer cancel()

	if _, err := s.batch.Run(ctx, NewBatchOptions(false, false, false, false)); err != nil {
		logger.GetLogger().WithError(err).Error("定时订阅批处理失败")
	}
}
