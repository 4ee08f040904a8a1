package schedule_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"dt-go/internal/config"
	"dt-go/internal/dt"
	"dt-go/internal/schedule"
	"dt-go/internal/testutil"
)

func testTask() dt.Task {
	return dt.Task{
		Label:   "auto-update",
		Program: "/usr/local/bin/dt",
		Args:    []string{"update", "--scheduled"},
		LogPath: "/var/log/dt/scheduled.log",
		Trigger: dt.Trigger{Daily: "03:30"},
	}
}

func TestCronRegistrar_Register(t *testing.T) {
	t.Run("writes a marker-delimited block", func(t *testing.T) {
		runner := testutil.NewFakeRunner()
		r := schedule.NewCronRegistrar(runner, dt.NewNopLogger())

		if err := r.Register(testTask()); err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		written, err := runner.LastInput("crontab -")
		if err != nil {
			t.Fatalf("crontab not written: %v", err)
		}
		tab := string(written)
		if !strings.Contains(tab, "# >>> dt:auto-update >>>") {
			t.Errorf("begin marker missing:\n%s", tab)
		}
		if !strings.Contains(tab, "30 3 * * * /usr/local/bin/dt update --scheduled >> /var/log/dt/scheduled.log 2>&1") {
			t.Errorf("cron line missing:\n%s", tab)
		}
		if !strings.Contains(tab, "# <<< dt:auto-update <<<") {
			t.Errorf("end marker missing:\n%s", tab)
		}
	})

	t.Run("preserves unrelated entries", func(t *testing.T) {
		runner := testutil.NewFakeRunner()
		runner.SetOutput("crontab -l", []byte("0 5 * * * /usr/bin/backup\n"))
		r := schedule.NewCronRegistrar(runner, dt.NewNopLogger())

		if err := r.Register(testTask()); err != nil {
			t.Fatalf("Register() error = %v", err)
		}

		written, _ := runner.LastInput("crontab -")
		if !strings.Contains(string(written), "0 5 * * * /usr/bin/backup") {
			t.Errorf("unrelated entry lost:\n%s", written)
		}
	})

	t.Run("registering twice leaves one block", func(t *testing.T) {
		runner := testutil.NewFakeRunner()
		r := schedule.NewCronRegistrar(runner, dt.NewNopLogger())

		if err := r.Register(testTask()); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		first, _ := runner.LastInput("crontab -")
		// The second run sees the first run's tab.
		runner.SetOutput("crontab -l", first)

		task := testTask()
		task.Trigger = dt.Trigger{Daily: "04:00"}
		if err := r.Register(task); err != nil {
			t.Fatalf("Register() second call error = %v", err)
		}

		written, _ := runner.LastInput("crontab -")
		tab := string(written)
		if strings.Count(tab, "# >>> dt:auto-update >>>") != 1 {
			t.Errorf("block count != 1:\n%s", tab)
		}
		if !strings.Contains(tab, "0 4 * * *") {
			t.Errorf("new trigger missing:\n%s", tab)
		}
		if strings.Contains(tab, "30 3 * * *") {
			t.Errorf("old trigger still present:\n%s", tab)
		}
	})

	t.Run("missing crontab starts from an empty tab", func(t *testing.T) {
		runner := testutil.NewFakeRunner()
		runner.SetError("crontab -l", errors.New("no crontab for user"))
		r := schedule.NewCronRegistrar(runner, dt.NewNopLogger())

		if err := r.Register(testTask()); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
		if _, err := runner.LastInput("crontab -"); err != nil {
			t.Fatalf("crontab not written: %v", err)
		}
	})

	t.Run("invalid trigger is rejected before any write", func(t *testing.T) {
		runner := testutil.NewFakeRunner()
		r := schedule.NewCronRegistrar(runner, dt.NewNopLogger())

		task := testTask()
		task.Trigger = dt.Trigger{}
		if err := r.Register(task); err == nil {
			t.Fatal("Register() error = nil, want trigger error")
		}
		if _, err := runner.LastInput("crontab -"); err == nil {
			t.Error("crontab written despite invalid trigger")
		}
	})
}

func TestCronRegistrar_Deregister(t *testing.T) {
	t.Run("removes only the labeled block", func(t *testing.T) {
		runner := testutil.NewFakeRunner()
		tab := strings.Join([]string{
			"0 5 * * * /usr/bin/backup",
			"# >>> dt:auto-update >>>",
			"30 3 * * * /usr/local/bin/dt update --scheduled >> /var/log/dt/scheduled.log 2>&1",
			"# <<< dt:auto-update <<<",
		}, "\n") + "\n"
		runner.SetOutput("crontab -l", []byte(tab))
		r := schedule.NewCronRegistrar(runner, dt.NewNopLogger())

		if err := r.Deregister("auto-update"); err != nil {
			t.Fatalf("Deregister() error = %v", err)
		}

		written, _ := runner.LastInput("crontab -")
		out := string(written)
		if strings.Contains(out, "dt:auto-update") {
			t.Errorf("block still present:\n%s", out)
		}
		if !strings.Contains(out, "/usr/bin/backup") {
			t.Errorf("unrelated entry lost:\n%s", out)
		}
	})

	t.Run("absent block is a no-op", func(t *testing.T) {
		runner := testutil.NewFakeRunner()
		runner.SetOutput("crontab -l", []byte("0 5 * * * /usr/bin/backup\n"))
		r := schedule.NewCronRegistrar(runner, dt.NewNopLogger())

		if err := r.Deregister("auto-update"); err != nil {
			t.Fatalf("Deregister() error = %v", err)
		}
		if _, err := runner.LastInput("crontab -"); err == nil {
			t.Error("crontab rewritten although no block exists")
		}
	})
}

func TestCronRegistrar_Registered(t *testing.T) {
	runner := testutil.NewFakeRunner()
	r := schedule.NewCronRegistrar(runner, dt.NewNopLogger())

	ok, err := r.Registered("auto-update")
	if err != nil {
		t.Fatalf("Registered() error = %v", err)
	}
	if ok {
		t.Error("Registered() = true on an empty tab")
	}

	runner.SetOutput("crontab -l", []byte("# >>> dt:auto-update >>>\n30 3 * * * x\n# <<< dt:auto-update <<<\n"))
	ok, err = r.Registered("auto-update")
	if err != nil {
		t.Fatalf("Registered() error = %v", err)
	}
	if !ok {
		t.Error("Registered() = false, want true")
	}

	// A label that is a prefix of ours must not match.
	ok, _ = r.Registered("auto")
	if ok {
		t.Error("Registered() matched a prefix label")
	}
}

func TestNewFromConfig(t *testing.T) {
	runner := testutil.NewFakeRunner()

	t.Run("cron", func(t *testing.T) {
		r, err := schedule.NewFromConfig(config.ScheduleConfig{Type: "cron"}, runner, dt.NewNopLogger())
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		if _, ok := r.(*schedule.CronRegistrar); !ok {
			t.Errorf("NewFromConfig() = %T, want *CronRegistrar", r)
		}
	})

	t.Run("none", func(t *testing.T) {
		r, err := schedule.NewFromConfig(config.ScheduleConfig{Type: "none"}, runner, dt.NewNopLogger())
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		if _, ok := r.(schedule.NopRegistrar); !ok {
			t.Errorf("NewFromConfig() = %T, want NopRegistrar", r)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := schedule.NewFromConfig(config.ScheduleConfig{Type: "systemd"}, runner, dt.NewNopLogger()); err == nil {
			t.Error("NewFromConfig() error = nil, want error")
		}
	})
}

func TestTriggerFromConfig(t *testing.T) {
	t.Run("daily", func(t *testing.T) {
		trigger, err := schedule.TriggerFromConfig(config.ScheduleConfig{Daily: "03:30"})
		if err != nil {
			t.Fatalf("TriggerFromConfig() error = %v", err)
		}
		if trigger.Daily != "03:30" || trigger.Every != 0 {
			t.Errorf("TriggerFromConfig() = %+v, want daily 03:30", trigger)
		}
	})

	t.Run("every", func(t *testing.T) {
		trigger, err := schedule.TriggerFromConfig(config.ScheduleConfig{Every: "6h"})
		if err != nil {
			t.Fatalf("TriggerFromConfig() error = %v", err)
		}
		if trigger.Every != 6*time.Hour {
			t.Errorf("TriggerFromConfig() every = %v, want 6h", trigger.Every)
		}
	})

	t.Run("both set", func(t *testing.T) {
		if _, err := schedule.TriggerFromConfig(config.ScheduleConfig{Daily: "03:30", Every: "6h"}); err == nil {
			t.Error("TriggerFromConfig() error = nil, want error")
		}
	})

	t.Run("bad interval", func(t *testing.T) {
		if _, err := schedule.TriggerFromConfig(config.ScheduleConfig{Every: "soon"}); err == nil {
			t.Error("TriggerFromConfig() error = nil, want error")
		}
	})
}
