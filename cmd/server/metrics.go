package main

import (
	"fmt"
	"net/http"

	"citysim/internal/control"
	"citysim/internal/persistence/indexdb"
	"citysim/internal/transport/ws"
)

func metricsHandler(ctl *control.Controller, hub *ws.Hub, idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		v, err := ctl.View(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		name := v.City
		s := v.State

		fmt.Fprintf(rw, "# HELP citysim_day Current in-game day.\n")
		fmt.Fprintf(rw, "# TYPE citysim_day gauge\n")
		fmt.Fprintf(rw, "citysim_day{city=%q} %d\n", name, s.Day)

		fmt.Fprintf(rw, "# HELP citysim_frame Frames advanced since start.\n")
		fmt.Fprintf(rw, "# TYPE citysim_frame counter\n")
		fmt.Fprintf(rw, "citysim_frame{city=%q} %d\n", name, v.Frame)

		fmt.Fprintf(rw, "# HELP citysim_budget City budget.\n")
		fmt.Fprintf(rw, "# TYPE citysim_budget gauge\n")
		fmt.Fprintf(rw, "citysim_budget{city=%q} %.2f\n", name, s.Budget)

		fmt.Fprintf(rw, "# HELP citysim_population Total residents.\n")
		fmt.Fprintf(rw, "# TYPE citysim_population gauge\n")
		fmt.Fprintf(rw, "citysim_population{city=%q} %d\n", name, s.Population)

		fmt.Fprintf(rw, "# HELP citysim_happiness City happiness (0..100).\n")
		fmt.Fprintf(rw, "# TYPE citysim_happiness gauge\n")
		fmt.Fprintf(rw, "citysim_happiness{city=%q} %.4f\n", name, s.Happiness)

		fmt.Fprintf(rw, "# HELP citysim_buildings Building count.\n")
		fmt.Fprintf(rw, "# TYPE citysim_buildings gauge\n")
		fmt.Fprintf(rw, "citysim_buildings{city=%q} %d\n", name, len(v.Buildings))

		fmt.Fprintf(rw, "# HELP citysim_coverage Service coverage (0..1).\n")
		fmt.Fprintf(rw, "# TYPE citysim_coverage gauge\n")
		fmt.Fprintf(rw, "citysim_coverage{city=%q,service=%q} %.4f\n", name, "police", s.Coverage.Police)
		fmt.Fprintf(rw, "citysim_coverage{city=%q,service=%q} %.4f\n", name, "fire", s.Coverage.Fire)
		fmt.Fprintf(rw, "citysim_coverage{city=%q,service=%q} %.4f\n", name, "education", s.Coverage.Education)
		fmt.Fprintf(rw, "citysim_coverage{city=%q,service=%q} %.4f\n", name, "healthcare", s.Coverage.Healthcare)

		fmt.Fprintf(rw, "# HELP citysim_ws_clients Connected websocket clients.\n")
		fmt.Fprintf(rw, "# TYPE citysim_ws_clients gauge\n")
		fmt.Fprintf(rw, "citysim_ws_clients{city=%q} %d\n", name, hub.Clients())

		if idx == nil {
			return
		}
		st := idx.Stats()
		fmt.Fprintf(rw, "# HELP citysim_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE citysim_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "citysim_index_queue_depth %d\n", st.QueueDepth)
		fmt.Fprintf(rw, "# HELP citysim_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE citysim_index_dropped_total counter\n")
		fmt.Fprintf(rw, "citysim_index_dropped_total{kind=%q} %d\n", "day", st.DropDayTotal)
		fmt.Fprintf(rw, "citysim_index_dropped_total{kind=%q} %d\n", "save", st.DropSaveTotal)
	}
}
