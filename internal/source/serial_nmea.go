package source

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"

	"github.com/cycoholic/gotrackers/internal/monitoring"
)

// SerialNMEASource reads NMEA 0183 sentences (GGA, RMC) from a serial GPS
// receiver and pushes parsed fixes as RawPoints. It plays the role the
// donor's serialmux.SerialMux plays for the radar device, but parses a
// different wire protocol for a different domain.
type SerialNMEASource struct {
	*Base

	port serial.Port
}

// OpenSerialNMEASource opens portName at baud and returns a source ready to
// be driven by Run.
func OpenSerialNMEASource(portName string, baud int) (*SerialNMEASource, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("serial nmea source: open %s: %w", portName, err)
	}
	return &SerialNMEASource{Base: NewBase(), port: port}, nil
}

// Run reads lines from the serial port until ctx is canceled or the port
// returns an error, parsing each recognized sentence into a RawPoint.
func (s *SerialNMEASource) Run(ctx context.Context) error {
	defer s.MarkDone()
	defer s.CloseObserver()

	scan := bufio.NewScanner(s.port)
	lineChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case errChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			return err
		case line, ok := <-lineChan:
			if !ok {
				return nil
			}
			point, ok := parseNMEALine(line)
			if !ok {
				continue
			}
			s.Push([]RawPoint{point})
		}
	}
}

// Stop closes the underlying serial port, unblocking any in-flight Scan.
func (s *SerialNMEASource) Stop(ctx context.Context) error {
	s.MarkDone()
	return s.port.Close()
}

// parseNMEALine extracts a position fix from a GGA or RMC sentence. Other
// sentence types and malformed lines are reported as "not a fix" rather
// than an error: a GPS feed routinely interleaves sentence types the
// analysis pipeline doesn't need.
func parseNMEALine(line string) (RawPoint, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return RawPoint{}, false
	}
	fields := strings.Split(line, ",")
	if len(fields) == 0 {
		return RawPoint{}, false
	}

	sentenceType := fields[0]
	switch {
	case strings.HasSuffix(sentenceType, "GGA"):
		return parseGGA(fields)
	case strings.HasSuffix(sentenceType, "RMC"):
		return parseRMC(fields)
	default:
		return RawPoint{}, false
	}
}

// parseGGA parses a $--GGA sentence:
// $GPGGA,hhmmss.ss,lat,N/S,lon,E/W,fixQuality,numSats,hdop,alt,M,...
func parseGGA(fields []string) (RawPoint, bool) {
	if len(fields) < 10 {
		return RawPoint{}, false
	}
	lat, ok := parseNMEACoord(fields[2], fields[3], true)
	if !ok {
		return RawPoint{}, false
	}
	lon, ok := parseNMEACoord(fields[4], fields[5], false)
	if !ok {
		return RawPoint{}, false
	}
	if fields[6] == "0" {
		return RawPoint{}, false // no fix
	}

	point := RawPoint{
		Time:        timeOfDay(fields[1]),
		HasPosition: true,
		Lat:         lat,
		Lon:         lon,
	}
	if alt, err := strconv.ParseFloat(fields[9], 64); err == nil {
		point.Elev = &alt
	}
	return point, true
}

// parseRMC parses a $--RMC sentence:
// $GPRMC,hhmmss.ss,status,lat,N/S,lon,E/W,speed,course,ddmmyy,...
func parseRMC(fields []string) (RawPoint, bool) {
	if len(fields) < 10 {
		return RawPoint{}, false
	}
	if fields[2] != "A" {
		return RawPoint{}, false // not a valid fix
	}
	lat, ok := parseNMEACoord(fields[3], fields[4], true)
	if !ok {
		return RawPoint{}, false
	}
	lon, ok := parseNMEACoord(fields[5], fields[6], false)
	if !ok {
		return RawPoint{}, false
	}
	return RawPoint{
		Time:        timeAndDate(fields[1], fields[9]),
		HasPosition: true,
		Lat:         lat,
		Lon:         lon,
	}, true
}

// parseNMEACoord parses an NMEA ddmm.mmmm / dddmm.mmmm coordinate field plus
// its hemisphere letter into signed decimal degrees.
func parseNMEACoord(value, hemisphere string, isLat bool) (float64, bool) {
	if value == "" {
		return 0, false
	}
	degreeDigits := 2
	if !isLat {
		degreeDigits = 3
	}
	if len(value) < degreeDigits+2 {
		return 0, false
	}

	degrees, err := strconv.ParseFloat(value[:degreeDigits], 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseFloat(value[degreeDigits:], 64)
	if err != nil {
		return 0, false
	}

	decimal := degrees + minutes/60
	if hemisphere == "S" || hemisphere == "W" {
		decimal = -decimal
	}
	return decimal, true
}

// timeOfDay parses an NMEA hhmmss[.ss] field against today's date in UTC.
// GGA carries no date field, so the caller's RawPoint.Time only has
// second-of-day resolution relative to the host clock's current date.
func timeOfDay(hhmmss string) time.Time {
	now := time.Now().UTC()
	h, m, sec, ok := splitHHMMSS(hhmmss)
	if !ok {
		monitoring.Logf("serial nmea source: malformed time field %q", hhmmss)
		return now
	}
	return time.Date(now.Year(), now.Month(), now.Day(), h, m, sec, 0, time.UTC)
}

// timeAndDate parses an NMEA hhmmss[.ss] field together with an RMC ddmmyy
// date field.
func timeAndDate(hhmmss, ddmmyy string) time.Time {
	h, m, sec, ok := splitHHMMSS(hhmmss)
	if !ok || len(ddmmyy) != 6 {
		monitoring.Logf("serial nmea source: malformed time/date fields %q %q", hhmmss, ddmmyy)
		return time.Now().UTC()
	}
	day, err1 := strconv.Atoi(ddmmyy[0:2])
	month, err2 := strconv.Atoi(ddmmyy[2:4])
	year, err3 := strconv.Atoi(ddmmyy[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Now().UTC()
	}
	// NMEA years are two digits with no century; 80-99 are treated as
	// 1980-1999 and 00-79 as 2000-2079, the common GPS-era pivot.
	fullYear := 2000 + year
	if year >= 80 {
		fullYear = 1900 + year
	}
	return time.Date(fullYear, time.Month(month), day, h, m, sec, 0, time.UTC)
}

func splitHHMMSS(field string) (h, m, sec int, ok bool) {
	if len(field) < 6 {
		return 0, 0, 0, false
	}
	var err1, err2, err3 error
	h, err1 = strconv.Atoi(field[0:2])
	m, err2 = strconv.Atoi(field[2:4])
	secFloat, err3 := strconv.ParseFloat(field[4:], 64)
	sec = int(secFloat)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return h, m, sec, true
}
