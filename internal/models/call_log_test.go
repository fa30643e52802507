package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallLog_CreateAndList(t *testing.T) {
	db := setupRoutingTestDB(t)
	line := createTestLine(t, db, "+14155550100")
	rule := createTestRule(t, db, line.ID, "rule", 10, ConditionAlways)

	ruleID := rule.ID
	for i := 0; i < 3; i++ {
		require.NoError(t, CreateCallLog(db, &CallLog{
			CallSid:       "CA" + string(rune('a'+i)),
			PhoneLineID:   line.ID,
			From:          "+14155550111",
			To:            line.Number,
			Disposition:   "busy",
			MatchedRuleID: &ruleID,
			ActionType:    ActionVoicemail,
			Outcome:       CallOutcomeMatched,
		}))
	}
	require.NoError(t, CreateCallLog(db, &CallLog{CallSid: "CAx", PhoneLineID: line.ID + 1, Outcome: CallOutcomeNoMatch}))

	logs, err := ListCallLogs(db, line.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "CAc", logs[0].CallSid)
	require.NotNil(t, logs[0].MatchedRuleID)
	assert.Equal(t, rule.ID, *logs[0].MatchedRuleID)

	limited, err := ListCallLogs(db, line.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestPurgeCallLogsBefore(t *testing.T) {
	db := setupRoutingTestDB(t)

	old := &CallLog{CallSid: "CAold", PhoneLineID: 1, Outcome: CallOutcomeNoMatch}
	require.NoError(t, CreateCallLog(db, old))
	require.NoError(t, db.Model(old).Update("created_at", time.Now().AddDate(0, 0, -100)).Error)
	require.NoError(t, CreateCallLog(db, &CallLog{CallSid: "CAnew", PhoneLineID: 1, Outcome: CallOutcomeMatched}))

	n, err := PurgeCallLogsBefore(db, time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	logs, err := ListCallLogs(db, 1, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "CAnew", logs[0].CallSid)
}
