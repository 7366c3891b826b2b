package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"seniorcare-notify/internal/config"
	"seniorcare-notify/internal/escalation"
	"seniorcare-notify/internal/models"

	"go.uber.org/zap"
)

// MedicationStore 服药记录存储接口
type MedicationStore interface {
	FindOverduePending(ctx context.Context, date, cutoff string) ([]models.MedicationLog, error)
	MarkNotified(ctx context.Context, ids []string) error
	MarkMissed(ctx context.Context, seniorID, date, cutoff string) (int64, error)
}

// GuardianDirectory 保护人目录接口
type GuardianDirectory interface {
	FindGuardiansOf(ctx context.Context, seniorID string) ([]models.Guardian, error)
	GetSeniorName(ctx context.Context, seniorID string) (string, error)
}

// Escalator 升级执行接口
type Escalator interface {
	Escalate(ctx context.Context, event *models.NotificationEvent, guardian models.Guardian) models.EscalationResult
}

// Scanner 超期扫描任务
// 周期性（或由外部 cron 触发）查找超过宽限期仍未服药、且尚未通知保护人的记录，
// 按老人分组后逐一交给编排器升级
type Scanner struct {
	config    *config.Config
	meds      MedicationStore
	directory GuardianDirectory
	escalator Escalator
	logger    *zap.Logger
}

// NewScanner 创建扫描任务
func NewScanner(
	cfg *config.Config,
	meds MedicationStore,
	directory GuardianDirectory,
	escalator Escalator,
	logger *zap.Logger,
) *Scanner {
	return &Scanner{
		config:    cfg,
		meds:      meds,
		directory: directory,
		escalator: escalator,
		logger:    logger,
	}
}

// Start 启动轮询模式（TriggerMode=poll 时使用）
// 每次运行失败只记日志，不中断循环
func (s *Scanner) Start(ctx context.Context) error {
	interval := time.Duration(s.config.Notify.ScanInterval) * time.Minute

	s.logger.Info("Overdue scanner started",
		zap.Duration("interval", interval),
		zap.Int("grace_minutes", s.config.Notify.GraceMinutes),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即执行一次
	if _, err := s.Run(ctx); err != nil {
		s.logger.Error("Overdue scan failed on startup",
			zap.Error(err),
		)
	}

	// 定期轮询
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Overdue scanner stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil {
				s.logger.Error("Overdue scan failed",
					zap.Error(err),
				)
				// 继续执行，不中断
			}
		}
	}
}

// Run 执行一次扫描，返回按老人汇总的处理报告
// 单个老人的失败不中断批次
func (s *Scanner) Run(ctx context.Context) (*models.ScanReport, error) {
	now := time.Now()
	date := now.Format("2006-01-02")
	currentHHMM := now.Format("15:04")

	// 1. 宽限期截止时刻：如当前 08:35、宽限 30 分钟，则查 08:05 之前的 pending
	graceCutoff := cutoffHHMM(now, time.Duration(s.config.Notify.GraceMinutes)*time.Minute)

	logs, err := s.meds.FindOverduePending(ctx, date, graceCutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to find overdue logs: %w", err)
	}

	report := &models.ScanReport{
		OverdueCount: len(logs),
		Results:      []models.SubjectResult{},
		CheckedAt:    currentHHMM,
	}

	if len(logs) == 0 {
		s.logger.Debug("No overdue medication logs",
			zap.String("checked_at", currentHHMM),
		)
		return report, nil
	}

	s.logger.Info("Found overdue medication logs",
		zap.Int("count", len(logs)),
		zap.String("grace_cutoff", graceCutoff),
	)

	// 2. 按老人分组，一个老人的多条未服药合并为一次通知
	bySenior := make(map[string][]models.MedicationLog)
	var seniorOrder []string
	for _, log := range logs {
		if _, ok := bySenior[log.UserID]; !ok {
			seniorOrder = append(seniorOrder, log.UserID)
		}
		bySenior[log.UserID] = append(bySenior[log.UserID], log)
	}

	// 3. 并发处理各老人
	// 每个未确认的保护人都占一整个确认等待，串行会让批次时长随人数线性增长；
	// 老人之间相互独立，幂等由 notified 标记（持久存储）保证，无需额外协调
	missedCutoff := cutoffHHMM(now, time.Duration(s.config.Notify.MissedAfterMinutes)*time.Minute)
	subjectResults := make([][]models.SubjectResult, len(seniorOrder))
	var wg sync.WaitGroup
	for i, seniorID := range seniorOrder {
		wg.Add(1)
		go func(i int, seniorID string) {
			defer wg.Done()
			subjectResults[i] = s.processSubject(ctx, seniorID, date, missedCutoff, bySenior[seniorID])
		}(i, seniorID)
	}
	wg.Wait()

	for _, results := range subjectResults {
		report.Results = append(report.Results, results...)
	}

	return report, nil
}

// cutoffHHMM 计算回看窗口的截止时刻 "HH:MM"
// 窗口跨越午夜时收紧为 "00:00"：回绕成前一天的 "23:xx" 会把
// 当日凌晨尚在宽限期内的记录误判为超期
func cutoffHHMM(now time.Time, window time.Duration) string {
	cutoff := now.Add(-window)
	if cutoff.Day() != now.Day() {
		return "00:00"
	}
	return cutoff.Format("15:04")
}

// processSubject 处理单个老人的全部超期记录
func (s *Scanner) processSubject(ctx context.Context, seniorID, date, missedCutoff string, logs []models.MedicationLog) []models.SubjectResult {
	var results []models.SubjectResult

	// 1. 解析保护人
	// 目录不可用时不标记 notified，留给下次扫描重试
	guardians, err := s.directory.FindGuardiansOf(ctx, seniorID)
	if err != nil {
		s.logger.Error("Failed to find guardians",
			zap.String("senior_id", seniorID),
			zap.Error(err),
		)
		return append(results, models.SubjectResult{
			SeniorID: seniorID,
			Notified: false,
			Error:    fmt.Sprintf("failed to find guardians: %v", err),
		})
	}

	// 2. 构建事件
	seniorName, err := s.directory.GetSeniorName(ctx, seniorID)
	if err != nil {
		s.logger.Warn("Failed to get senior name, using fallback",
			zap.String("senior_id", seniorID),
			zap.Error(err),
		)
		seniorName = "어르신"
	}

	medicationNames := make([]string, 0, len(logs))
	logIDs := make([]string, 0, len(logs))
	for _, log := range logs {
		medicationNames = append(medicationNames, log.MedicationName)
		logIDs = append(logIDs, log.ID)
	}
	event := escalation.NewMissedDoseEvent(seniorID, seniorName, medicationNames, logIDs)

	// 3. 逐个保护人升级，单个保护人失败不影响其余
	if len(guardians) == 0 {
		results = append(results, models.SubjectResult{
			SeniorID: seniorID,
			Notified: false,
			Error:    "no guardians linked",
		})
	}
	for _, guardian := range guardians {
		escResult := s.escalator.Escalate(ctx, event, guardian)
		results = append(results, models.SubjectResult{
			SeniorID:   seniorID,
			GuardianID: guardian.ID,
			Notified:   escResult.PushSent || escResult.SMSSent,
		})
	}

	// 4. 无论投递结果如何都标记 notified，保证每条记录至多升级一次
	// （标记写入失败时记录保持可重试，下次扫描会再次选中）
	if err := s.meds.MarkNotified(ctx, logIDs); err != nil {
		s.logger.Error("Failed to mark logs notified",
			zap.String("senior_id", seniorID),
			zap.Error(err),
		)
		results = append(results, models.SubjectResult{
			SeniorID: seniorID,
			Notified: false,
			Error:    fmt.Sprintf("failed to mark notified: %v", err),
		})
	}

	// 5. 超过更长阈值仍 pending 的记录转为 missed，与通知结果无关
	if affected, err := s.meds.MarkMissed(ctx, seniorID, date, missedCutoff); err != nil {
		s.logger.Error("Failed to mark logs missed",
			zap.String("senior_id", seniorID),
			zap.Error(err),
		)
	} else if affected > 0 {
		s.logger.Info("Marked overdue logs missed",
			zap.String("senior_id", seniorID),
			zap.Int64("count", affected),
		)
	}

	return results
}
