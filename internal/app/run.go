package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/document"
	"github.com/specialistvlad/gridflow/internal/engine"
	"github.com/specialistvlad/gridflow/internal/events"
	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/internal/store"
	"github.com/specialistvlad/gridflow/internal/value"
	"github.com/zclconf/go-cty/cty"
)

// Run loads the grid document, evaluates it, applies any overrides with a
// seeded re-evaluation, and prints every node's outputs.
func (app *App) Run(ctx context.Context) (err error) {
	ctx = ctxlog.WithLogger(ctx, app.logger)
	app.ctx = ctx
	app.logger.Debug("App.Run method started.")

	overrides := make([]Override, 0, len(app.config.Sets))
	for _, s := range app.config.Sets {
		o, err := ParseOverride(s)
		if err != nil {
			return err
		}
		overrides = append(overrides, o)
	}

	app.startMetricsServer()
	defer func() {
		if cerr := app.closeMetricsServer(); err == nil {
			err = cerr
		}
	}()

	bus, err := app.newBus(ctx)
	if err != nil {
		return err
	}
	defer bus.Close()
	stopLog := app.logEvents(ctx, bus)
	defer stopLog()

	st := store.New(app.registry, store.WithEmitter(bus))
	eng := engine.New(app.registry, st,
		engine.WithEmitter(bus),
		engine.WithNodeTimeout(app.config.NodeTimeout),
		engine.WithMetrics(app.metrics),
	)

	doc, err := document.Load(ctx, app.config.GridPath, st)
	if err != nil {
		return fmt.Errorf("failed to load grid: %w", err)
	}
	if len(doc.IDs) == 0 {
		app.logger.Warn("No nodes found in grid, evaluation not required.")
		return nil
	}

	app.logger.Info("🚀 Evaluating grid...")
	report, err := eng.Evaluate(ctx)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	app.logReport(report)

	if len(overrides) > 0 {
		report, err = app.applyOverrides(ctx, st, eng, doc, overrides)
		if err != nil {
			return err
		}
		app.logReport(report)
	}
	app.logger.Info("🏁 Evaluation finished.")
	stopLog()

	labels := doc.Labels()
	snap := st.Snapshot()
	if err := printResults(app.outW, app.registry, snap, labels); err != nil {
		return err
	}

	if app.config.SavePath != "" {
		if err := document.Save(app.config.SavePath, snap, labels); err != nil {
			return err
		}
		app.logger.Info("Grid saved.", "path", app.config.SavePath)
	}

	app.logger.Debug("App.Run method finished.")
	return nil
}

// newBus builds the event bus with a publisher for every configured transport.
func (app *App) newBus(ctx context.Context) (*events.Bus, error) {
	logger := ctxlog.FromContext(ctx)
	var pubs []events.Publisher
	if app.config.NATSURL != "" {
		p, err := events.NewNATSPublisher(app.config.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		logger.Info("Publishing graph changes to NATS.", "url", app.config.NATSURL)
		pubs = append(pubs, p)
	}
	if app.config.SocketIOURL != "" {
		p, err := events.NewSocketIOPublisher(app.config.SocketIOURL, events.SocketIOOptions{
			Namespace: app.config.SocketIONamespace,
		})
		if err != nil {
			for _, p := range pubs {
				p.Close()
			}
			return nil, fmt.Errorf("failed to create Socket.IO publisher: %w", err)
		}
		logger.Info("Publishing graph changes to Socket.IO.", "url", app.config.SocketIOURL)
		pubs = append(pubs, p)
	}
	return events.NewBus(pubs...), nil
}

// logEvents mirrors every change event into the debug log until the returned
// function is called. The stop function may be called more than once.
func (app *App) logEvents(ctx context.Context, bus *events.Bus) func() {
	ch, cancel := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			ctxlog.FromContext(ctx).Debug("Graph changed.", "kind", ev.Kind, "nodes", ev.NodeIDs, "edges", ev.EdgeIDs, "revision", ev.Revision)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// applyOverrides updates the overridden sources, one atomic update per node,
// then re-evaluates from the touched nodes only. Every override is checked
// before any is applied, so a rejected one leaves the graph unchanged.
func (app *App) applyOverrides(ctx context.Context, st *store.Store, eng *engine.Engine, doc *document.Document, overrides []Override) (*engine.Report, error) {
	partials := make(map[string]map[string]cty.Value)
	var order []string
	for _, o := range overrides {
		id, ok := doc.ID(o.Label)
		if !ok {
			return nil, fmt.Errorf("set %s.%s: no node labelled %q", o.Label, o.Slot, o.Label)
		}
		if _, seen := partials[id]; !seen {
			partials[id] = make(map[string]cty.Value)
			order = append(order, id)
		}
		partials[id][o.Slot] = o.Value
	}

	var errs []error
	for _, id := range order {
		if err := st.CheckNodeSources(id, partials[id]); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to apply overrides: %w", errors.Join(errs...))
	}
	for _, id := range order {
		if err := st.UpdateNodeSources(ctx, id, partials[id]); err != nil {
			return nil, fmt.Errorf("failed to apply overrides: %w", err)
		}
	}
	app.logger.Info("Overrides applied.", "nodes", len(order))

	report, err := eng.Evaluate(ctx, order...)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}
	return report, nil
}

func (app *App) logReport(report *engine.Report) {
	if failed := report.Failed(); len(failed) > 0 {
		app.logger.Warn("Some nodes failed to evaluate and kept their last value.", "run", report.RunID, "failed", failed, "error", report.Err())
	}
}

// printResults writes every node's outputs in insertion order.
func printResults(w io.Writer, reg *registry.Registry, snap *store.Snapshot, labels map[string]string) error {
	for _, n := range snap.Nodes {
		name := labels[n.ID]
		if name == "" {
			name = n.ID
		}
		header := fmt.Sprintf("== %s (%s)", name, n.Type)
		if n.Error != "" {
			header += " ERROR: " + n.Error
		}
		if _, err := fmt.Fprintln(w, header); err != nil {
			return err
		}

		nt, err := reg.Get(n.Type)
		if err != nil {
			return err
		}
		for _, bus := range nt.OutputNames() {
			text := value.Display(n.OutputCache[bus])
			text = strings.ReplaceAll(text, "\n", "\n     ")
			if _, err := fmt.Fprintf(w, "   %s = %s\n", bus, text); err != nil {
				return err
			}
		}
	}
	return nil
}
