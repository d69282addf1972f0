package services_test

import (
	"github.com/Hunternif/cards-against-animals-sub000/models"
	"gorm.io/datatypes"
)

func datatypesSettings(s models.LobbySettings) datatypes.JSONType[models.LobbySettings] {
	return datatypes.NewJSONType(s)
}
