package domain

import (
	"testing"
	"time"
)

var base = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

func TestCanApply_Table(t *testing.T) {
	want := map[Operation]map[Status]bool{
		OpApprove:     {StatusPending: true},
		OpReject:      {StatusPending: true},
		OpCancel:      {StatusPending: true, StatusApproved: true, StatusRejected: true},
		OpReturn:      {StatusActive: true, StatusOverdue: true},
		OpActivate:    {StatusApproved: true},
		OpMarkOverdue: {StatusActive: true},
	}
	for op, allowed := range want {
		for _, s := range Statuses {
			if got := CanApply(op, s); got != allowed[s] {
				t.Errorf("CanApply(%s, %s) = %v, want %v", op, s, got, allowed[s])
			}
		}
	}
}

func TestReturnStatus_Boundary(t *testing.T) {
	finish := base.Add(48 * time.Hour)
	testCases := []struct {
		name   string
		status Status
		now    time.Time
		want   Status
	}{
		{"well before finish", StatusActive, finish.Add(-time.Hour), StatusReturned},
		{"exactly at finish", StatusActive, finish, StatusReturned},
		{"sub-second after finish", StatusActive, finish.Add(500 * time.Millisecond), StatusReturned},
		{"one second after finish", StatusActive, finish.Add(time.Second), StatusReturnedLate},
		{"overdue returned", StatusOverdue, finish.Add(-time.Hour), StatusReturnedLate},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := &Order{Status: tc.status, FinishAt: finish}
			if got := ReturnStatus(o, tc.now); got != tc.want {
				t.Errorf("ReturnStatus = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestIsOverdue(t *testing.T) {
	finish := base.Add(time.Hour)
	testCases := []struct {
		name   string
		status Status
		now    time.Time
		want   bool
	}{
		{"active before finish", StatusActive, finish.Add(-time.Second), false},
		{"active at finish", StatusActive, finish, false},
		{"active after finish", StatusActive, finish.Add(time.Second), true},
		{"approved after finish", StatusApproved, finish.Add(time.Hour), false},
		{"already overdue", StatusOverdue, finish.Add(time.Hour), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := &Order{Status: tc.status, FinishAt: finish}
			if got := IsOverdue(o, tc.now); got != tc.want {
				t.Errorf("IsOverdue = %v, want %v", got, tc.want)
			}
		})
	}
	if IsOverdue(nil, base) {
		t.Error("nil order must not be overdue")
	}
}

func TestApply_SetsDecisionTimestamps(t *testing.T) {
	now := base.Add(time.Minute)
	testCases := []struct {
		op     Operation
		from   Status
		want   Status
		stamp  func(o *Order) *time.Time
		reason bool
	}{
		{OpApprove, StatusPending, StatusApproved, func(o *Order) *time.Time { return o.ApprovedAt }, true},
		{OpReject, StatusPending, StatusRejected, func(o *Order) *time.Time { return o.RejectedAt }, true},
		{OpCancel, StatusApproved, StatusCancelled, func(o *Order) *time.Time { return o.CanceledAt }, false},
		{OpReturn, StatusActive, StatusReturned, func(o *Order) *time.Time { return o.ReturnedAt }, false},
	}
	for _, tc := range testCases {
		t.Run(string(tc.op), func(t *testing.T) {
			o := &Order{Status: tc.from, StartAt: base, FinishAt: base.Add(time.Hour)}
			Apply(o, tc.op, now, "ok")
			if o.Status != tc.want {
				t.Errorf("status = %s, want %s", o.Status, tc.want)
			}
			if ts := tc.stamp(o); ts == nil || !ts.Equal(now) {
				t.Errorf("decision timestamp = %v, want %v", ts, now)
			}
			if tc.reason && (o.Reason == nil || *o.Reason != "ok") {
				t.Errorf("reason = %v, want ok", o.Reason)
			}
			if !tc.reason && o.Reason != nil {
				t.Errorf("reason should stay unset for %s", tc.op)
			}
			if !o.UpdatedAt.Equal(now) {
				t.Errorf("UpdatedAt = %v, want %v", o.UpdatedAt, now)
			}
		})
	}
}

func TestOrder_Validate(t *testing.T) {
	valid := Order{UserID: "u", AssetID: "a", Quantity: 1, StartAt: base, FinishAt: base.Add(time.Hour)}
	testCases := []struct {
		name    string
		mutate  func(o *Order)
		wantErr bool
	}{
		{"valid", func(o *Order) {}, false},
		{"no user", func(o *Order) { o.UserID = "" }, true},
		{"no asset", func(o *Order) { o.AssetID = "" }, true},
		{"zero quantity", func(o *Order) { o.Quantity = 0 }, true},
		{"missing start", func(o *Order) { o.StartAt = time.Time{} }, true},
		{"finish equals start", func(o *Order) { o.FinishAt = o.StartAt }, true},
		{"finish before start", func(o *Order) { o.FinishAt = o.StartAt.Add(-time.Hour) }, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := valid
			tc.mutate(&o)
			if err := o.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestInitialStatus(t *testing.T) {
	if InitialStatus(true) != StatusPending {
		t.Error("approval-required asset should start Pending")
	}
	if InitialStatus(false) != StatusActive {
		t.Error("asset without approval should start Active")
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range Statuses {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Status("Lost").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestDue(t *testing.T) {
	o := &Order{StartAt: base, FinishAt: base.Add(time.Hour)}
	testCases := []struct {
		name string
		op   Operation
		now  time.Time
		want bool
	}{
		{"activate before start", OpActivate, base.Add(-time.Second), false},
		{"activate at start", OpActivate, base, true},
		{"overdue at finish", OpMarkOverdue, o.FinishAt, false},
		{"overdue after finish", OpMarkOverdue, o.FinishAt.Add(time.Second), true},
		{"approve any time", OpApprove, base.Add(-time.Hour), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Due(tc.op, o, tc.now); got != tc.want {
				t.Errorf("Due(%s) = %v, want %v", tc.op, got, tc.want)
			}
		})
	}
}
