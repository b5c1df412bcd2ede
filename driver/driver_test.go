package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aro-lang/aro/value"
)

func writeSource(t *testing.T, dir, filename, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(contents), 0o644))
}

func TestLoadMergesSourcesAndFailsFastOnErrors(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "broken.aro", "(not valid aro\n")

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadRequiresExactlyOneApplicationStart(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "app.aro", `(Greeting: print a welcome message) {
  Log "hi" to the <console>.
}
`)

	_, err := Load(dir)
	require.Error(t, err)
}

func TestRunExecutesApplicationStartAndShutsDownWithoutKeepalive(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "app.aro", `(Application-Start: boot the application) {
  Log "booting" to the <console>.
  Return <success: boolean>.
}

(Application-End:Success: finish cleanly) {
  Store "bye" in the <shutdown>.
}
`)

	d, err := Load(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, d.Run(ctx))

	require.Len(t, d.Store.RetrieveAll("shutdown-repository"), 1,
		"Application-End:Success should have run and written to the shutdown repository")
}

func TestRunStopsOnExplicitShutdownRequestWhenKeptAlive(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "app.aro", `(Application-Start: boot the application) {
  Keepalive "running".
  Return <success: boolean>.
}
`)

	d, err := Load(dir)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	d.RequestShutdown()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after an explicit shutdown request")
	}
}

func TestSubscribeEventHandlersMatchesBusinessActivitySuffix(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "app.aro", `(Application-Start: boot the application) {
  Keepalive "running".
  Return <success: boolean>.
}

(Notify: order-placed Handler) {
  Store <event> in the <notification>.
}
`)

	d, err := Load(dir)
	require.NoError(t, err)
	d.subscribeEventHandlers()

	busCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Bus.Run(busCtx)

	d.Bus.Emit("order-placed", value.NewMapping().WithField("id", value.String("o1")))

	require.Eventually(t, func() bool {
		return len(d.Store.RetrieveAll("notification-repository")) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeEventHandlersMatchesObserverSuffix(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "app.aro", `(Application-Start: boot the application) {
  Keepalive "running".
  Store "widget" in the <order>.
  Return <success: boolean>.
}

(Audit: order Observer) {
  Store <change:entity-after> in the <audit-log>.
}
`)

	d, err := Load(dir)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return len(d.Store.RetrieveAll("audit-log-repository")) == 1
	}, time.Second, 10*time.Millisecond,
		"order Observer should have fired when Application-Start stored into <order>")

	d.RequestShutdown()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after an explicit shutdown request")
	}
}

func TestUsesKeepaliveDetectsVerbCaseInsensitively(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "app.aro", `(Application-Start: boot the application) {
  KEEPALIVE "running".
  Return <success: boolean>.
}
`)
	d, err := Load(dir)
	require.NoError(t, err)
	require.True(t, usesKeepalive(d.Program.FeatureSets))
}
