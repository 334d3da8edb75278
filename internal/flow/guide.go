package flow

// DefaultGuide è il testo introduttivo mostrato ai nuovi utenti.
const DefaultGuide = `Welcome to AgriAssist! To get accurate crop recommendations, tell us about your soil and weather.

- Nitrogen (N), Phosphorus (P), Potassium (K): the main soil nutrients, in kg/ha. A soil test from a local lab or a home kit gives these values; N drives leaf growth, P roots and flowering, K overall plant health.
- Temperature (°C) and Humidity (%): average conditions for the growing season. A local weather station or a connected sensor works best.
- pH: how acidic or alkaline the soil is (0-14). Most crops prefer 6 to 7.5; a cheap pH meter or test strips are enough.
- Rainfall (mm): expected rainfall for the season. Regional weather records are a good estimate.

If you have a Blynk device, you can fetch temperature, humidity and rainfall automatically and adjust the rest by hand. Don't worry about perfect numbers: reasonable estimates already give useful suggestions.`
