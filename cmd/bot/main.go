package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"citysim/internal/protocol"
)

// bot is a scripted websocket client: it keeps a small city growing and
// repaired, for load and soak testing a server.
func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		seed    = flag.Int64("seed", 1, "placement seed")
		reserve = flag.Float64("reserve", 200_000, "budget kept in reserve")
		scale   = flag.Float64("scale", 3, "time scale requested on connect")
	)
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logger.WithField("component", "bot")

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.Command{Type: protocol.TypeSetTimeScale, ID: "scale", Scale: *scale}); err != nil {
		log.Fatalf("send SET_TIME_SCALE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	p := &planner{rng: rand.New(rand.NewSource(*seed)), reserve: *reserve}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			for _, cmd := range p.decide(st) {
				if err := conn.WriteJSON(cmd); err != nil {
					return
				}
			}
		case protocol.TypeResult:
			var res protocol.ResultMsg
			if err := json.Unmarshal(msg, &res); err != nil {
				continue
			}
			if !res.OK {
				log.WithFields(logrus.Fields{"ack_for": res.AckFor, "code": res.Code}).Info(res.Message)
			}
		}
	}
}

var buildOrder = []string{"RESIDENTIAL", "RESIDENTIAL", "COMMERCIAL", "INDUSTRIAL", "POLICE_STATION", "SCHOOL", "RESIDENTIAL", "HOSPITAL", "FIRE_STATION"}

type planner struct {
	rng     *rand.Rand
	reserve float64

	lastDay int
	next    int
	seq     int
}

// decide runs once per new day: repair anything about to go down, then place
// the next building in buildOrder if the budget stays above reserve.
func (p *planner) decide(st protocol.StateMsg) []protocol.Command {
	if st.Day == p.lastDay {
		return nil
	}
	p.lastDay = st.Day

	var out []protocol.Command
	budget := st.Budget
	for _, b := range st.Buildings {
		if b.Condition >= 30 {
			continue
		}
		cost := (100 - b.Condition) * 100
		if budget-cost < p.reserve {
			continue
		}
		budget -= cost
		out = append(out, protocol.Command{Type: protocol.TypeRepair, ID: p.id("repair"), BuildingID: b.ID})
	}
	if budget > p.reserve+120_000 {
		kind := buildOrder[p.next%len(buildOrder)]
		p.next++
		out = append(out, protocol.Command{
			Type: protocol.TypePlace,
			ID:   p.id("place"),
			Kind: kind,
			Pos:  [3]float64{float64(p.rng.Intn(64)) * 2, 0, float64(p.rng.Intn(64)) * 2},
			Rot:  [4]float64{0, 0, 0, 1},
		})
	}
	return out
}

func (p *planner) id(prefix string) string {
	p.seq++
	return fmt.Sprintf("%s_%d", prefix, p.seq)
}
