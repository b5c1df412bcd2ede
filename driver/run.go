package driver

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aro-lang/aro/compile"
	"github.com/aro-lang/aro/repo"
	"github.com/aro-lang/aro/runtime/eventbus"
	"github.com/aro-lang/aro/value"
)

const applicationStartName = "Application-Start"

// handlerSuffix is the fixed tail of a business activity that marks a
// feature set as an event handler: identity "* : <event_name>
// Handler" means its BusinessActivity equals "<event_name> Handler"
// (spec §4.6).
const handlerSuffix = " Handler"

// observerSuffix is the fixed tail of a business activity that marks a
// feature set as a repository observer: identity "* : <repo> Observer"
// subscribes to the synthetic "<repo>-repository-change" stream a
// repo.Store emits after every successful mutation (spec §4.7,
// glossary "Handler").
const observerSuffix = " Observer"

// Run carries out spec §4.8 steps 4 through 6: invoke Application-
// Start, keep the process alive while the program uses Keepalive, and
// shut down in order on exit. It blocks until the application
// terminates and returns the error, if any, the run ended with.
func (d *Driver) Run(ctx context.Context) error {
	appStart, ok := d.FeatureSets.Lookup(applicationStartName)
	if !ok {
		return fmt.Errorf("driver: program has no %s feature set", applicationStartName)
	}

	d.subscribeEventHandlers()
	d.Bus.Subscribe("shutdown", func(context.Context, eventbus.Envelope) error {
		d.RequestShutdown()
		return nil
	})

	busCtx, cancelBus := context.WithCancel(context.Background())
	defer cancelBus()
	go d.Bus.Run(busCtx)

	_, runErr := d.Runner.Run(ctx, appStart, nil)
	abnormal := runErr != nil
	if abnormal {
		d.Log.Error("driver: %s: %v", applicationStartName, runErr)
	}

	if !abnormal && usesKeepalive(d.Program.FeatureSets) {
		var fatal error
		abnormal, fatal = d.waitForShutdown(ctx)
		if fatal != nil {
			runErr = fatal
		}
	}

	d.shutdown(cancelBus, abnormal)
	if abnormal {
		return runErr
	}
	return nil
}

// subscribeEventHandlers wires every known feature set — the
// application's own plus every loaded plugin's — whose business
// activity matches "<event name> Handler" to that event name on the
// bus (spec §4.6).
func (d *Driver) subscribeEventHandlers() {
	for _, a := range d.FeatureSets.All() {
		activity := a.FeatureSet.BusinessActivity
		if eventName, ok := strings.CutSuffix(activity, handlerSuffix); ok && eventName != "" {
			d.Bus.Subscribe(eventName, d.activationHandler(a, "event"))
			continue
		}
		if repoName, ok := strings.CutSuffix(activity, observerSuffix); ok && repoName != "" {
			d.Bus.Subscribe(repo.RepositoryName(repoName)+"-change", d.activationHandler(a, "change"))
		}
	}
}

// activationHandler builds the eventbus.Handler that evaluates a's
// guard against the envelope payload and, if it passes, runs a with a
// fresh context seeded with seedName = payload: "event" for ordinary
// event handlers, "change" for repository observers seeing the
// RepositoryChange envelope (spec §4.6, §4.7).
func (d *Driver) activationHandler(a *compile.AnalyzedFeatureSet, seedName string) eventbus.Handler {
	return func(ctx context.Context, env eventbus.Envelope) error {
		seed := map[string]value.Value{seedName: env.Payload}
		ok, err := d.Runner.EvaluateGuard(a.FeatureSet, seed)
		if err != nil {
			d.Log.Error("driver: %s: guard: %v", a.Identity(), err)
			return nil
		}
		if !ok {
			return nil
		}
		if _, err := d.Runner.Run(ctx, a, seed); err != nil {
			d.Log.Error("driver: %s: %v", a.Identity(), err)
		}
		return nil
	}
}

// usesKeepalive reports whether any feature set in sets invokes
// Keepalive, the signal that the Application Driver must block after
// Application-Start returns (spec §4.8 step 5).
func usesKeepalive(sets []*compile.AnalyzedFeatureSet) bool {
	for _, a := range sets {
		for _, stmt := range a.FeatureSet.Statements {
			if strings.EqualFold(stmt.Verb, "keepalive") {
				return true
			}
		}
	}
	return false
}

// waitForShutdown blocks until a termination signal, an explicit
// shutdown request, a reported fatal error, or ctx's own cancellation
// (spec §4.8 step 5). It reports whether the wakeup was abnormal and,
// if so, the error that made it so.
func (d *Driver) waitForShutdown(ctx context.Context) (bool, error) {
	signalc := make(chan struct{}, 1)
	stop := notifySignals(signalc)
	defer stop()

	select {
	case <-signalc:
		return false, nil
	case <-d.shutdownC:
		return false, nil
	case err := <-d.fatalC:
		d.Log.Error("driver: persistent service reported a fatal error: %v", err)
		return true, err
	case <-ctx.Done():
		return false, nil
	}
}

// notifySignals relays SIGINT/SIGTERM onto signalc and returns a func
// that stops relaying, mirroring the teacher's signal.Notify-driven
// shutdown trigger (grounded on runtime.go's server-mode loop) without
// tying waitForShutdown directly to the os/signal API.
func notifySignals(signalc chan<- struct{}) func() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		select {
		case signalc <- struct{}{}:
		default:
		}
	}()
	return stop
}

// shutdown carries out spec §4.8 step 6: emit application-shutdown,
// drain the event bus, run the matching Application-End feature set,
// and unload every plugin.
func (d *Driver) shutdown(cancelBus context.CancelFunc, abnormal bool) {
	d.Bus.Emit("application-shutdown", value.Null)
	cancelBus()
	<-d.Bus.Done()

	endName := "Application-End:Success"
	if abnormal {
		endName = "Application-End:Error"
	}
	if end, ok := d.FeatureSets.Lookup(endName); ok {
		if _, err := d.Runner.Run(context.Background(), end, nil); err != nil {
			d.Log.Error("driver: %s: %v", endName, err)
		}
	}

	d.unloadPlugins()
}
