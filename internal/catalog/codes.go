package catalog

// codes.go holds the built-in parameter-code table.
//
// Standard codes are the two-hex-digit OBD-II PIDs; "ff"-prefixed codes are
// the logging app's vendor extensions. Short names are stable channel keys
// and must never change across versions: downstream entity IDs are derived
// from them.

import "math"

// roundTo rounds v to n decimal places.
func roundTo(v float64, n int) float64 {
	p := math.Pow10(n)
	return math.Round(v*p) / p
}

// secondsToMinutes is the transform for trip-time codes: the app reports
// seconds, the materialized channel is minutes.
func secondsToMinutes(v float64) float64 {
	return roundTo(v/60.0, 2)
}

func en(name string) map[string]string {
	return map[string]string{"en": name}
}

func enfr(name, fr string) map[string]string {
	return map[string]string{"en": name, "fr": fr}
}

var builtinDefinitions = []Definition{
	// Standard OBD-II PIDs
	{Code: "04", Kind: KindPercent, ShortName: "engine_load", Unit: "%", Names: enfr("Engine Load", "Charge moteur")},
	{Code: "05", Kind: KindTemperature, ShortName: "coolant_temp", Unit: "°C", Names: enfr("Engine Coolant Temperature", "Température du liquide de refroidissement")},
	{Code: "0a", Kind: KindPressure, ShortName: "fuel_pressure", Unit: "kPa", Names: enfr("Fuel Pressure", "Pression de carburant")},
	{Code: "0b", Kind: KindPressure, ShortName: "intake_manifold_pressure", Unit: "kPa", Names: enfr("Intake Manifold Pressure", "Pression du collecteur d'admission")},
	{Code: "0c", Kind: KindEngineSpeed, ShortName: "engine_rpm", Unit: "rpm", Names: enfr("Engine RPM", "Régime moteur")},
	{Code: "0d", Kind: KindVehicleSpeed, ShortName: "speed_obd", Unit: "km/h", Names: enfr("Vehicle Speed (OBD)", "Vitesse du véhicule (OBD)")},
	{Code: "0e", Kind: KindPercent, ShortName: "timing_advance", Unit: "°", Names: enfr("Timing Advance", "Avance à l'allumage")},
	{Code: "0f", Kind: KindTemperature, ShortName: "intake_air_temp", Unit: "°C", Names: enfr("Intake Air Temperature", "Température de l'air d'admission")},
	{Code: "10", Kind: KindAirFlow, ShortName: "mass_air_flow_rate", Unit: "g/s", Names: enfr("Mass Air Flow Rate", "Débit massique d'air")},
	{Code: "11", Kind: KindPercent, ShortName: "throttle_position", Unit: "%", Names: enfr("Throttle Position", "Position du papillon")},
	{Code: "1f", Kind: KindDuration, ShortName: "run_time_since_start", Unit: "s", Names: enfr("Run Time Since Engine Start", "Temps écoulé depuis le démarrage")},
	{Code: "21", Kind: KindDistance, ShortName: "dist_mil_on", Unit: "km", Names: enfr("Distance Travelled With MIL On", "Distance parcourue avec voyant moteur allumé")},
	{Code: "2f", Kind: KindFuelLevel, ShortName: "fuel_level_ecu", Unit: "%", Names: enfr("Fuel Level (From Engine ECU)", "Niveau de carburant (ECU)")},
	{Code: "31", Kind: KindDistance, ShortName: "dist_since_codes_cleared", Unit: "km", Names: enfr("Distance Since Codes Cleared", "Distance depuis l'effacement des codes")},
	{Code: "33", Kind: KindPressure, ShortName: "barometric_pressure", Unit: "kPa", Names: enfr("Barometric Pressure (From Vehicle)", "Pression barométrique")},
	{Code: "42", Kind: KindVoltage, ShortName: "control_module_voltage", Unit: "V", Names: enfr("Voltage (Control Module)", "Tension (module de contrôle)")},
	{Code: "46", Kind: KindTemperature, ShortName: "ambient_air_temp", Unit: "°C", Names: enfr("Ambient Air Temperature", "Température de l'air ambiant")},
	{Code: "5c", Kind: KindTemperature, ShortName: "engine_oil_temperature", Unit: "°C", Names: enfr("Engine Oil Temperature", "Température d'huile moteur")},
	{Code: "5e", Kind: KindFuelRate, ShortName: "fuel_rate_ecu", Unit: "L/hr", Names: enfr("Engine Fuel Rate", "Débit de carburant moteur")},

	// GPS (vendor extension block)
	{Code: "ff1001", Kind: KindGPSSpeed, ShortName: "speed_gps", Unit: "km/h", Names: enfr("Vehicle Speed (GPS)", "Vitesse du véhicule (GPS)")},
	{Code: "ff1005", Kind: KindLongitude, ShortName: "gps_lon", Unit: "°", Names: enfr("GPS Longitude", "Longitude GPS")},
	{Code: "ff1006", Kind: KindLatitude, ShortName: "gps_lat", Unit: "°", Names: enfr("GPS Latitude", "Latitude GPS")},
	{Code: "ff1010", Kind: KindAltitude, ShortName: "gps_altitude", Unit: "m", Names: enfr("GPS Altitude", "Altitude GPS")},
	{Code: "ff1239", Kind: KindAccuracy, ShortName: "gps_accuracy", Unit: "m", Names: enfr("GPS Accuracy", "Précision GPS")},
	{Code: "ff123a", Kind: KindText, ShortName: "gps_satellites", Names: enfr("GPS Satellites", "Satellites GPS"), Text: true},
	{Code: "ff1007", Kind: KindPercent, ShortName: "gps_bearing", Unit: "°", Names: enfr("GPS Bearing", "Cap GPS")},

	// Fuel economy, instant
	{Code: "ff1201", Kind: KindFuelEconomy, ShortName: "mpg_instant", Unit: "mpg", Names: enfr("Miles Per Gallon (Instant)", "Miles par gallon (instantané)")},
	{Code: "ff1203", Kind: KindFuelEconomy, ShortName: "kpl_instant", Unit: "kpl", Names: enfr("Kilometers Per Litre (Instant)", "Kilomètres par litre (instantané)")},
	{Code: "ff5202", Kind: KindFuelEconomy, ShortName: "l_per_100_instant", Unit: "L/100km", Names: enfr("Litres Per 100 Kilometer (Instant)", "Litres aux 100 km (instantané)")},

	// Fuel economy, trip average
	{Code: "ff1205", Kind: KindFuelEconomy, ShortName: "mpg_trip_avg", Unit: "mpg", Names: enfr("Miles Per Gallon (Trip Average)", "Miles par gallon (moyenne trajet)")},
	{Code: "ff1206", Kind: KindFuelEconomy, ShortName: "kpl_trip_avg", Unit: "kpl", Names: enfr("Kilometers Per Litre (Trip Average)", "Kilomètres par litre (moyenne trajet)")},
	{Code: "ff5203", Kind: KindFuelEconomy, ShortName: "l_per_100_trip_avg", Unit: "L/100km", Names: enfr("Litres Per 100 Kilometer (Trip Average)", "Litres aux 100 km (moyenne trajet)")},

	// Fuel economy, long-term average
	{Code: "ff1240", Kind: KindFuelEconomy, ShortName: "mpg_long_term_avg", Unit: "mpg", Names: enfr("Miles Per Gallon (Long Term Average)", "Miles par gallon (moyenne long terme)")},
	{Code: "ff1241", Kind: KindFuelEconomy, ShortName: "kpl_long_term_avg", Unit: "kpl", Names: enfr("Kilometers Per Litre (Long Term Average)", "Kilomètres par litre (moyenne long terme)")},
	{Code: "ff1242", Kind: KindFuelEconomy, ShortName: "l_per_100_long_term_avg", Unit: "L/100km", Names: enfr("Litres Per 100 Kilometer (Long Term Average)", "Litres aux 100 km (moyenne long terme)")},

	// Trip statistics
	{Code: "ff1204", Kind: KindDistance, ShortName: "trip_distance", Unit: "km", Names: enfr("Trip Distance", "Distance du trajet")},
	{Code: "ff120c", Kind: KindDistance, ShortName: "trip_distance_stored", Unit: "km", Names: enfr("Trip Distance (Stored)", "Distance du trajet (mémorisée)")},
	{Code: "ff1266", Kind: KindDuration, ShortName: "trip_time_since_start", Unit: "min", Names: enfr("Trip Time (Since Journey Start)", "Durée du trajet (depuis le départ)"), Transform: secondsToMinutes},
	{Code: "ff1267", Kind: KindDuration, ShortName: "trip_time_stationary", Unit: "min", Names: enfr("Trip Time (Stationary)", "Durée du trajet (à l'arrêt)"), Transform: secondsToMinutes},
	{Code: "ff1268", Kind: KindDuration, ShortName: "trip_time_moving", Unit: "min", Names: enfr("Trip Time (Moving)", "Durée du trajet (en mouvement)"), Transform: secondsToMinutes},
	{Code: "ff124d", Kind: KindVehicleSpeed, ShortName: "avg_trip_speed_overall", Unit: "km/h", Names: enfr("Average Trip Speed (Whole Trip)", "Vitesse moyenne du trajet (total)")},
	{Code: "ff1263", Kind: KindVehicleSpeed, ShortName: "avg_trip_speed_moving", Unit: "km/h", Names: enfr("Average Trip Speed (Moving Only)", "Vitesse moyenne du trajet (en mouvement)")},

	// Fuel flow / emissions / electrical
	{Code: "ff125a", Kind: KindFuelRate, ShortName: "fuel_flow_rate_min", Unit: "cc/min", Names: enfr("Fuel Flow Rate/Minute", "Débit de carburant/minute")},
	{Code: "ff125d", Kind: KindFuelRate, ShortName: "fuel_flow_rate_hr", Unit: "L/hr", Names: enfr("Fuel Flow Rate/Hour", "Débit de carburant/heure")},
	{Code: "ff1257", Kind: KindEmission, ShortName: "co2_gkm_instant", Unit: "g/km", Names: enfr("CO2 (Instant)", "CO2 (instantané)")},
	{Code: "ff1258", Kind: KindEmission, ShortName: "co2_gkm_avg", Unit: "g/km", Names: enfr("CO2 (Trip Average)", "CO2 (moyenne trajet)")},
	{Code: "ff1238", Kind: KindVoltage, ShortName: "voltage_obd_adapter", Unit: "V", Names: enfr("Voltage (OBD Adapter)", "Tension (adaptateur OBD)")},
	{Code: "ff1271", Kind: KindFuelLevel, ShortName: "fuel_used_trip", Unit: "L", Names: enfr("Fuel Used (Trip)", "Carburant consommé (trajet)")},

	// Accelerometer
	{Code: "ff1220", Kind: KindAcceleration, ShortName: "accel_x", Unit: "g", Names: enfr("Acceleration Sensor (X Axis)", "Accéléromètre (axe X)")},
	{Code: "ff1221", Kind: KindAcceleration, ShortName: "accel_y", Unit: "g", Names: enfr("Acceleration Sensor (Y Axis)", "Accéléromètre (axe Y)")},
	{Code: "ff1222", Kind: KindAcceleration, ShortName: "accel_z", Unit: "g", Names: enfr("Acceleration Sensor (Z Axis)", "Accéléromètre (axe Z)")},
	{Code: "ff1223", Kind: KindAcceleration, ShortName: "accel_total", Unit: "g", Names: enfr("Acceleration Sensor (Total)", "Accéléromètre (total)")},
}

// builtinGroups are the derived groups shipped with the catalog: the fuel
// economy families, each expressed in three mutually exclusive units.
// See groups.go for the selection rules.
var builtinGroups = []DerivedGroup{
	{
		Name: "fuel-economy-instant",
		Members: []GroupMember{
			{Code: "ff5202", Priority: PriorityPerDistance},
			{Code: "ff1203", Priority: PriorityPerVolumeMetric},
			{Code: "ff1201", Priority: PriorityPerVolumeImperial},
		},
	},
	{
		Name: "fuel-economy-trip",
		Members: []GroupMember{
			{Code: "ff5203", Priority: PriorityPerDistance},
			{Code: "ff1206", Priority: PriorityPerVolumeMetric},
			{Code: "ff1205", Priority: PriorityPerVolumeImperial},
		},
	},
	{
		Name: "fuel-economy-longterm",
		Members: []GroupMember{
			{Code: "ff1242", Priority: PriorityPerDistance},
			{Code: "ff1241", Priority: PriorityPerVolumeMetric},
			{Code: "ff1240", Priority: PriorityPerVolumeImperial},
		},
	},
}
