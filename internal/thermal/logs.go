package thermal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"controlling_hottub/internal/models"
)

// Switch is one heater transition.
type Switch struct {
	At time.Time
	On bool
}

type temperatureLine struct {
	Timestamp    time.Time `json:"timestamp"`
	WaterTempF   *float64  `json:"water_temp_f"`
	AmbientTempF *float64  `json:"ambient_temp_f"`
}

type equipmentLine struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
}

// ParseTemperatureLog reads a JSON-lines temperature log. Malformed lines and
// lines without a water temperature are counted in skipped, not failed on.
func ParseTemperatureLog(r io.Reader) (readings []models.TemperatureReading, skipped int, err error) {
	err = eachLine(r, func(line []byte) {
		var l temperatureLine
		if json.Unmarshal(line, &l) != nil || l.Timestamp.IsZero() || l.WaterTempF == nil {
			skipped++
			return
		}
		readings = append(readings, models.TemperatureReading{
			RecordedAt:   l.Timestamp,
			WaterTempF:   *l.WaterTempF,
			AmbientTempF: l.AmbientTempF,
		})
	})
	sortReadings(readings)
	return readings, skipped, err
}

// ParseEquipmentLog reads a JSON-lines equipment log keeping heater_on and
// heater_off actions only.
func ParseEquipmentLog(r io.Reader) (switches []Switch, skipped int, err error) {
	err = eachLine(r, func(line []byte) {
		var l equipmentLine
		if json.Unmarshal(line, &l) != nil || l.Timestamp.IsZero() {
			skipped++
			return
		}
		switch strings.ToLower(strings.TrimSpace(l.Action)) {
		case "heater_on":
			switches = append(switches, Switch{At: l.Timestamp, On: true})
		case "heater_off":
			switches = append(switches, Switch{At: l.Timestamp})
		}
	})
	sortSwitches(switches)
	return switches, skipped, err
}

// SwitchesFromEvents converts stored equipment events into heater switches.
func SwitchesFromEvents(events []models.EquipmentEvent) []Switch {
	var out []Switch
	for _, e := range events {
		switch e.Type {
		case models.EventHeaterOn:
			out = append(out, Switch{At: e.OccurredAt, On: true})
		case models.EventHeaterOff:
			out = append(out, Switch{At: e.OccurredAt})
		}
	}
	sortSwitches(out)
	return out
}

func eachLine(r io.Reader, fn func([]byte)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fn([]byte(line))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan log: %w", err)
	}
	return nil
}

func sortReadings(rs []models.TemperatureReading) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].RecordedAt.Before(rs[j].RecordedAt) })
}

func sortSwitches(ss []Switch) {
	sort.SliceStable(ss, func(i, j int) bool { return ss[i].At.Before(ss[j].At) })
}
