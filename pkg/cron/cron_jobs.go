package cron

import (
	"context"
	"database/sql"
	"time"

	"github.com/Khoadoanduy/fair-share-sub001/internal/consent"
	"github.com/Khoadoanduy/fair-share-sub001/pkg/utils"

	"github.com/robfig/cron/v3"
)

func StartCronJob(db *sql.DB) *cron.Cron {
	c := cron.New()

	// Runs daily at midnight — nudge members who still owe a share approval
	_, err := c.AddFunc("0 0 * * *", func() {
		err := SendShareReminders(db)
		if err != nil {
			utils.Logger.Errorf("Cron job failed to send share reminders: %v", err)
		}
	})
	if err != nil {
		utils.Logger.Errorf("Failed to schedule share reminder job: %v", err)
	}

	c.Start()
	utils.Logger.Info("Cron jobs started (share approval reminders daily at midnight)")
	return c
}

// -------------------------------------------------------------
// Remind members with an unapproved share in the current round
// -------------------------------------------------------------
func SendShareReminders(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pending, err := consent.New(db).PendingApprovals(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		utils.Logger.Info("No pending share approvals, skipping reminders")
		return nil
	}

	sent := 0
	for _, p := range pending {
		if p.Email == "" {
			continue
		}
		if err := utils.SendShareReminderEmail(p.Email, p.FirstName, p.GroupName, p.AmountEach); err != nil {
			utils.Logger.Errorf("failed to remind user %d in group %d: %v", p.UserID, p.GroupID, err)
			continue
		}
		sent++
	}

	utils.Logger.Infof("Share approval reminders sent: %d of %d pending", sent, len(pending))
	return nil
}
