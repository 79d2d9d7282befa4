// Package domain detects and tracks heatwaves in gridded daily temperature data.
//
// # Data Source
//
// Inputs are daily 2 m air temperature on a regular latitude/longitude grid,
// typically ERA5 reanalysis. Two series are used: the "actual" analysis period
// and a longer climatological reference period (e.g. 1981-2020) from which
// thresholds are derived. Temperatures are converted from Kelvin to Celsius
// by the NetCDF adapter before they reach this package.
//
// # Threshold and Exceedance
//
// The threshold for a date is the Nth percentile (default 90) of every
// reference-period value sharing that date's calendar day, pooled across
// years:
//
//	threshold(2015-07-14, cell) = P90{ clim(y-07-14, cell) : y in reference years }
//
// Missing values are ignored. A calendar day with no reference samples (for
// example 29 February when the reference has no leap years) gets a NaN
// threshold and never exceeds.
//
// A cell exceeds on a day when actual > threshold. Exceedance then passes a
// persistence filter: only runs of at least N consecutive days (default 3)
// at the same cell survive. The filter is pointwise in space.
//
//	day:   0 1 2 3 4 5 6 7 8 9 10 11 12
//	raw:   0 1 1 1 0 1 1 0 1 1 1  1  0
//	kept:  0 1 1 1 0 0 0 0 1 1 1  1  0     (N = 3)
//
// # Clusters
//
// Each day's filtered mask is split into 4-connected clusters. On global
// grids the first and last longitude columns are neighbours; latitude never
// wraps. Clustering uses the filtered mask only. Because a kept cell always
// has actual > threshold, the signed anomaly (actual − threshold) is positive
// on every member and is used solely for intensity.
//
// Cell area follows the spherical approximation
//
//	area(lat) = R² · Δlon · Δlat · cos(lat)      R = 6371 km, steps in radians
//
// Clusters smaller than the configured minimum area are dropped and the
// survivors renumbered 1..n in detection order. Intensity is the mean (or
// median, or max) anomaly over members; the centroid is area-weighted. On
// periodic grids member longitudes are unwrapped from the cut through the
// widest empty run of columns, so seam-crossing and very wide clusters keep
// their true centre.
//
// # Tracking
//
// Clusters on consecutive days are linked when they share cells. Ties are
// broken by strength, then lowest predecessor ID, then lowest successor ID,
// so the outcome never depends on map or file order. See [Tracker].
//
// # ID Generation
//
// Event IDs are deterministic SHA-256 hashes of dataset|region|start|cluster,
// so re-running tracking over the same artifacts reproduces the same IDs and
// downstream upserts stay idempotent. See [generateEventID].
package domain
