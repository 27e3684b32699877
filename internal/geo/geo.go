// Package geo считает расстояния между географическими точками.
//
// Расстояние считается по формуле гаверсинусов в километрах и округляется до
// двух знаков. Такое же выражение используется в SQL-запросе поиска ближайших
// складов: обе реализации обязаны давать одинаковый результат, иначе проверка
// воспроизводимости прайсинга ломается.
package geo

import "math"

// EarthRadiusKm — средний радиус Земли в километрах.
const EarthRadiusKm = 6371.0

// DistanceKm возвращает расстояние между двумя точками в километрах,
// округлённое до двух знаков.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return Round2(EarthRadiusKm * c)
}

// Round2 округляет до двух знаков после запятой.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
