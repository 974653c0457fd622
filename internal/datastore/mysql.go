package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/snakeguard/snakeguard-go/internal/conf"
)

// MySQLStore implements DataStore for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	my := settings.Output.MySQL
	if my.Host == "" || my.Database == "" || my.Username == "" {
		return fmt.Errorf("mysql host, database and username must be set")
	}
	return nil
}

// Open sets up the MySQL database connection and runs migrations.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}

	my := store.Settings.Output.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		my.Username, my.Password, my.Host, my.Port, my.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	connInfo := fmt.Sprintf("%s@%s:%d/%s", my.Username, my.Host, my.Port, my.Database)
	return performAutoMigration(db, store.Settings.Debug, "MySQL", connInfo)
}

// Close closes the MySQL database connection.
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("getting underlying connection: %w", err)
	}
	return sqlDB.Close()
}

// ListUsersNearby runs the geo-radius query server-side using MySQL's
// spherical distance function, avoiding a full profile scan.
func (store *MySQLStore) ListUsersNearby(lat, lng, radiusKm float64) ([]UserProfile, error) {
	var users []UserProfile
	err := store.DB.
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("ST_Distance_Sphere(POINT(longitude, latitude), POINT(?, ?)) <= ?", lng, lat, radiusKm*1000).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("geo radius query: %w", err)
	}
	return users, nil
}
