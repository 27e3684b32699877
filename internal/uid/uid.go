// Package uid генерирует короткие непрозрачные идентификаторы с префиксом
// типа сущности: ord_k3Jb81qA, prd_0x2Lm9vQ и т.п.
package uid

import "github.com/google/uuid"

// Префиксы идентификаторов по типам сущностей.
const (
	PrefixOrder      = "ord"
	PrefixProduct    = "prd"
	PrefixAttribute  = "att"
	PrefixWarehouse  = "whs"
	PrefixAllocation = "alc"
	PrefixAddress    = "adr"
	PrefixEvent      = "evt"
)

const idLength = 8

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// New возвращает идентификатор вида "<prefix>_<8 символов>".
// Источник случайности — uuid v4; уникальность в хранилище обеспечивают
// ограничения первичных ключей.
func New(prefix string) string {
	raw := uuid.New()

	buf := make([]byte, 0, len(prefix)+1+idLength)
	buf = append(buf, prefix...)
	buf = append(buf, '_')
	for i := 0; i < idLength; i++ {
		buf = append(buf, alphabet[int(raw[i])%len(alphabet)])
	}
	return string(buf)
}
