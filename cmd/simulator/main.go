package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-assignments/internal/models"
)

// Cities for realistic routes
var cities = []struct {
	Name string
	models.Location
}{
	{"London", models.Location{Lat: 51.5074, Lon: -0.1278}},
	{"New York", models.Location{Lat: 40.7128, Lon: -74.0060}},
	{"Madrid", models.Location{Lat: 40.4168, Lon: -3.7038}},
	{"Nicosia", models.Location{Lat: 35.1856, Lon: 33.3823}},
	{"Bogota", models.Location{Lat: 4.7110, Lon: -74.0721}},
	{"Paris", models.Location{Lat: 48.8566, Lon: 2.3522}},
	{"Istanbul", models.Location{Lat: 41.0082, Lon: 28.9784}},
	{"Cardiff", models.Location{Lat: 51.4816, Lon: -3.1791}},
	{"Berlin", models.Location{Lat: 52.5200, Lon: 13.4050}},
	{"Toronto", models.Location{Lat: 43.6532, Lon: -79.3832}},
}

var (
	firstNames = []string{"Ana", "Ben", "Chloe", "David", "Elena", "Farid", "Grace", "Hugo"}
	lastNames  = []string{"Garcia", "Smith", "Novak", "Okafor", "Rossi", "Tanaka", "Weber"}
	makes      = map[string][]string{
		"ICE": {"Ford", "Toyota", "Honda", "BMW"},
		"EV":  {"Tesla", "Nissan", "Chevrolet", "Audi"},
	}
)

func jitterLocation(base models.Location, meters float64) models.Location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return models.Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func haversineKm(a, b models.Location) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

// apiClient talks to the assignments API.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{baseURL: baseURL, token: token, http: &http.Client{Timeout: 10 * time.Second}}
}

// statusError carries a non-2xx response.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func (c *apiClient) do(method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Status: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// login exchanges credentials for a bearer token. When the account does not
// exist yet and an invitation code is given, it registers first; the code must
// have been issued for username@example.com.
func (c *apiClient) login(username, password, invitationCode string) error {
	creds := models.LoginRequest{Username: username, Password: password}
	var resp models.LoginResponse
	err := c.do(http.MethodPost, "/auth/login", creds, &resp)
	if se, ok := err.(*statusError); ok && se.Status == http.StatusUnauthorized && invitationCode != "" {
		reg := models.RegisterRequest{
			Username:       username,
			Email:          username + "@example.com",
			Password:       password,
			FirstName:      "Fleet",
			LastName:       "Simulator",
			InvitationCode: invitationCode,
		}
		if err := c.do(http.MethodPost, "/auth/register", reg, &resp); err != nil {
			return fmt.Errorf("register %s: %w", username, err)
		}
	} else if err != nil {
		return fmt.Errorf("login %s: %w", username, err)
	}
	c.token = resp.Token
	return nil
}

func (c *apiClient) createDriver(i int) (*models.Driver, error) {
	driver := models.Driver{
		FirstName:     firstNames[rand.Intn(len(firstNames))],
		LastName:      lastNames[rand.Intn(len(lastNames))],
		LicenseNumber: fmt.Sprintf("SIM-%d-%06d", i, rand.Intn(1000000)),
		Phone:         fmt.Sprintf("+44 7700 %06d", rand.Intn(1000000)),
	}
	var created models.Driver
	if err := c.do(http.MethodPost, "/drivers", driver, &created); err != nil {
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	log.WithFields(log.Fields{
		"driver_id": created.ID,
		"name":      created.FirstName + " " + created.LastName,
	}).Info("Created driver")
	return &created, nil
}

func (c *apiClient) createVehicle(i int, vtype string) (*models.Vehicle, error) {
	vehicle := models.Vehicle{
		VIN:   fmt.Sprintf("SIMVIN%d%09d", i, rand.Intn(1000000000)),
		Plate: fmt.Sprintf("SIM%d-%04d", i, rand.Intn(10000)),
		Type:  vtype,
		Make:  makes[vtype][rand.Intn(len(makes[vtype]))],
		Model: "Fleet",
		Year:  2020 + rand.Intn(5),
	}
	var created models.Vehicle
	if err := c.do(http.MethodPost, "/vehicles", vehicle, &created); err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	log.WithFields(log.Fields{
		"vehicle_id": created.ID,
		"type":       vtype,
		"make":       created.Make,
	}).Info("Created vehicle")
	return &created, nil
}

// planTrip builds an assignment between two distinct cities. Destinations are
// jittered so that independent trips rarely share exact coordinates.
func planTrip(driverID, vehicleID int64, date models.Date) models.Assignment {
	from := cities[rand.Intn(len(cities))]
	to := cities[rand.Intn(len(cities))]
	for to.Name == from.Name {
		to = cities[rand.Intn(len(cities))]
	}
	origin := jitterLocation(from.Location, 500)
	destination := jitterLocation(to.Location, 500)
	return models.Assignment{
		DriverID:            driverID,
		VehicleID:           vehicleID,
		TravelDate:          date,
		RouteName:           fmt.Sprintf("%s - %s (%.0f km)", from.Name, to.Name, haversineKm(origin, destination)),
		OriginLocation:      origin,
		DestinationLocation: destination,
	}
}

// scheduleDay pairs drivers and vehicles for date and posts one assignment per
// pair. Conflicts are expected when the day was already scheduled.
func (c *apiClient) scheduleDay(drivers []models.Driver, vehicles []models.Vehicle, date models.Date) (created, rejected int) {
	perm := rand.Perm(len(vehicles))
	for i, d := range drivers {
		if i >= len(vehicles) {
			break
		}
		trip := planTrip(d.ID, vehicles[perm[i]].ID, date)
		err := c.do(http.MethodPost, "/assignments", trip, nil)
		fields := log.Fields{"driver_id": trip.DriverID, "vehicle_id": trip.VehicleID, "travel_date": date}
		if se, ok := err.(*statusError); ok && se.Status == http.StatusConflict {
			log.WithFields(fields).WithField("reason", se.Body).Debug("Assignment rejected")
			rejected++
			continue
		}
		if err != nil {
			log.WithFields(fields).WithError(err).Error("Failed to create assignment")
			rejected++
			continue
		}
		log.WithFields(fields).WithField("route", trip.RouteName).Info("Scheduled assignment")
		created++
	}
	return created, rejected
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return def
}

func main() {
	fleetSize := envInt("FLEET_SIZE", 10)
	daysAhead := envInt("SIM_DAYS_AHEAD", 7)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 30)) * time.Second

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	client := newAPIClient(apiURL, os.Getenv("SIM_AUTH_TOKEN"))
	if client.token == "" {
		username := os.Getenv("SIM_USERNAME")
		if username == "" {
			username = "simulator"
		}
		password := os.Getenv("SIM_PASSWORD")
		if password == "" {
			password = "simulator-password"
		}
		if err := client.login(username, password, os.Getenv("SIM_INVITATION_CODE")); err != nil {
			log.WithError(err).Fatal("Failed to authenticate")
		}
	}

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"days_ahead": daysAhead,
		"api_url":    apiURL,
		"interval":   interval,
	}).Info("Starting dispatch simulation")

	drivers := make([]models.Driver, 0, fleetSize)
	vehicles := make([]models.Vehicle, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		if d, err := client.createDriver(i + 1); err != nil {
			log.WithError(err).Error("Failed to create driver")
		} else {
			drivers = append(drivers, *d)
		}
		vtype := []string{"ICE", "EV"}[rand.Intn(2)]
		if v, err := client.createVehicle(i+1, vtype); err != nil {
			log.WithError(err).Error("Failed to create vehicle")
		} else {
			vehicles = append(vehicles, *v)
		}
	}

	if len(drivers) == 0 || len(vehicles) == 0 {
		log.Error("No fleet created. Ensure the simulator account may manage the fleet and the API is reachable. Exiting.")
		return
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		today := models.DateOf(time.Now())
		for day := 1; day <= daysAhead; day++ {
			date := today.AddDays(day)
			created, rejected := client.scheduleDay(drivers, vehicles, date)
			log.WithFields(log.Fields{
				"travel_date": date,
				"created":     created,
				"rejected":    rejected,
			}).Info("Day scheduled")
		}
		<-tick.C
	}
}
