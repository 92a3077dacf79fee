package protocol

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"citysim/internal/sim/city"
)

// Command is any client -> server message. Most fields unused by Type are
// omitted; on and scale are always sent so that false and 0 stay explicit.
type Command struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version,omitempty"`
	ID              string     `json:"id,omitempty"`
	Kind            string     `json:"kind,omitempty"`
	Pos             [3]float64 `json:"pos,omitempty"`
	Rot             [4]float64 `json:"rot,omitempty"`
	BuildingID      string     `json:"building_id,omitempty"`
	On              bool       `json:"on"`
	Scale           float64    `json:"scale"`
	Slot            string     `json:"slot,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	AckFor          string        `json:"ack_for,omitempty"`
	Command         string        `json:"command"`
	OK              bool          `json:"ok"`
	Code            string        `json:"code,omitempty"`
	Message         string        `json:"message,omitempty"`
	Building        *BuildingView `json:"building,omitempty"`
	Saves           []string      `json:"saves,omitempty"`
}

// STATE (server -> client)
type StateMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	City            string         `json:"city"`
	Frame           uint64         `json:"frame"`
	Day             int            `json:"day"`
	GameTime        float64        `json:"game_time"`
	TimeScale       float64        `json:"time_scale"`
	Budget          float64        `json:"budget"`
	BudgetText      string         `json:"budget_text"`
	Population      int            `json:"population"`
	Happiness       float64        `json:"happiness"`
	Coverage        city.Coverage  `json:"coverage"`
	Buildings       []BuildingView `json:"buildings"`
	Days            []DaySummary   `json:"days,omitempty"`
}

type BuildingView struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Name        string     `json:"name"`
	Pos         [3]float64 `json:"pos"`
	Rot         [4]float64 `json:"rot"`
	Condition   float64    `json:"condition"`
	Efficiency  float64    `json:"efficiency"`
	Operational bool       `json:"operational"`
	Preview     bool       `json:"preview,omitempty"`
	Residents   *int       `json:"residents,omitempty"`
	Workers     *int       `json:"workers,omitempty"`
	Pollution   *float64   `json:"pollution,omitempty"`
}

type DaySummary struct {
	Day        int     `json:"day"`
	Budget     float64 `json:"budget"`
	Income     float64 `json:"income"`
	Upkeep     float64 `json:"upkeep"`
	Population int     `json:"population"`
	Happiness  float64 `json:"happiness"`
}

var printer = message.NewPrinter(language.English)

// FormatMoney renders v with thousands grouping and two decimals, e.g. "-1,250.50".
func FormatMoney(v float64) string {
	return printer.Sprintf("%.2f", v)
}

func NewBuildingView(b city.Building) BuildingView {
	v := BuildingView{
		ID:          b.ID,
		Kind:        b.Kind.String(),
		Name:        b.Stats.Name,
		Pos:         [3]float64{b.Pos.X, b.Pos.Y, b.Pos.Z},
		Rot:         [4]float64{b.Rot.X, b.Rot.Y, b.Rot.Z, b.Rot.W},
		Condition:   b.Condition,
		Efficiency:  b.Efficiency,
		Operational: b.Operational,
		Preview:     b.Preview,
	}
	switch {
	case b.Residential != nil:
		v.Residents = &b.Residential.Residents
	case b.Commercial != nil:
		v.Workers = &b.Commercial.Workers
	case b.Industrial != nil:
		v.Workers = &b.Industrial.Workers
		v.Pollution = &b.Industrial.Pollution
	}
	return v
}

func NewStateMsg(v city.StateView) StateMsg {
	s := v.State
	msg := StateMsg{
		Type:            TypeState,
		ProtocolVersion: Version,
		City:            v.City,
		Frame:           v.Frame,
		Day:             s.Day,
		GameTime:        s.GameTime,
		TimeScale:       s.TimeScale,
		Budget:          s.Budget,
		BudgetText:      FormatMoney(s.Budget),
		Population:      s.Population,
		Happiness:       s.Happiness,
		Coverage:        s.Coverage,
		Buildings:       make([]BuildingView, 0, len(v.Buildings)),
	}
	for _, b := range v.Buildings {
		msg.Buildings = append(msg.Buildings, NewBuildingView(b))
	}
	for _, r := range v.Reports {
		msg.Days = append(msg.Days, DaySummary{
			Day:        r.Day,
			Budget:     r.BudgetAfter,
			Income:     r.CommercialTax + r.IndustrialTax + r.CitizenTax,
			Upkeep:     r.Upkeep + r.Expenses,
			Population: r.Population,
			Happiness:  r.Happiness,
		})
	}
	return msg
}

func NewResult(cmd Command, err error) ResultMsg {
	r := ResultMsg{
		Type:            TypeResult,
		ProtocolVersion: Version,
		AckFor:          cmd.ID,
		Command:         cmd.Type,
		OK:              err == nil,
	}
	if err != nil {
		r.Code = CodeFor(err)
		r.Message = err.Error()
	}
	return r
}
