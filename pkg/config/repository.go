package config

type Repository struct {
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	// WidgetsSeedFile is a JSON array of widgets served from memory when MongoURI is empty.
	WidgetsSeedFile string `mapstructure:"WIDGETS_SEED_FILE"`
}
